// Command hgbd preprocesses head/gaze recordings and
// pretrains reconstruction models on them.
package main

import "github.com/retazo0018/head-gaze-behavioural-prediction/internal/cmd"

func main() {
	cmd.Execute()
}
