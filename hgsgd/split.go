package hgsgd

import (
	"fmt"
	"sort"
)

// A Hasher is a SampleList with the added capability to
// produce a hash for a given sample.
type Hasher interface {
	SampleList
	Hash(i int) []byte
}

// HashSplit partitions a Hasher.
// It can be used to deterministically split data up into
// separate validation and training samples.
//
// The Hasher h will be re-ordered as needed for internal
// computations.
//
// The leftRatio argument specifies the expected fraction
// of samples that should end up on the left partition.
func HashSplit(h Hasher, leftRatio float64) (left, right SampleList) {
	if leftRatio <= 0 {
		return h.Slice(0, 0), h
	} else if leftRatio >= 1 {
		return h, h.Slice(0, 0)
	}
	cutoff := hashCutoff(leftRatio)
	insertIdx := 0
	for i := 0; i < h.Len(); i++ {
		hash := h.Hash(i)
		if compareHashes(hash, cutoff) < 0 {
			h.Swap(insertIdx, i)
			insertIdx++
		}
	}
	splitIdx := sort.Search(h.Len(), func(i int) bool {
		return compareHashes(h.Hash(i), cutoff) >= 0
	})
	return h.Slice(0, splitIdx), h.Slice(splitIdx, h.Len())
}

// SplitThree partitions h into training, validation and
// test lists.
// About trainRatio of the samples are used for training
// and valRatio for validation; the rest are for testing.
//
// Slices of h must themselves implement Hasher.
func SplitThree(h Hasher, trainRatio, valRatio float64) (train, val, test SampleList, err error) {
	if trainRatio < 0 || valRatio < 0 || trainRatio+valRatio > 1 {
		return nil, nil, nil, fmt.Errorf("split: invalid ratios %f and %f",
			trainRatio, valRatio)
	}
	train, rest := HashSplit(h, trainRatio)
	restHasher, ok := rest.(Hasher)
	if !ok {
		return nil, nil, nil, fmt.Errorf("split: %T is not a Hasher", rest)
	}
	remaining := 1 - trainRatio
	if remaining == 0 {
		return train, rest.Slice(0, 0), rest.Slice(0, 0), nil
	}
	val, test = HashSplit(restHasher, valRatio/remaining)
	return train, val, test, nil
}

func hashCutoff(ratio float64) []byte {
	res := make([]byte, 8)
	for i := range res {
		ratio *= 256
		value := int(ratio)
		ratio -= float64(value)
		if value == 256 {
			value = 255
		}
		res[i] = byte(value)
	}
	return res
}

func compareHashes(h1, h2 []byte) int {
	max := len(h1)
	if len(h2) > max {
		max = len(h2)
	}
	for i := 0; i < max; i++ {
		var h1Val, h2Val byte
		if i < len(h1) {
			h1Val = h1[i]
		}
		if i < len(h2) {
			h2Val = h2[i]
		}
		if h1Val < h2Val {
			return -1
		} else if h1Val > h2Val {
			return 1
		}
	}
	return 0
}
