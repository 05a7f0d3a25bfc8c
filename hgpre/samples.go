package hgpre

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"

	"github.com/retazo0018/head-gaze-behavioural-prediction/hgdata"
	"github.com/retazo0018/head-gaze-behavioural-prediction/hgsgd"
)

// A SampleList is a list of gaze/head window pairs.
//
// Samples are masked when they are fetched, so every
// epoch sees a fresh mask for every window.
type SampleList struct {
	Gaze *hgdata.Windows
	Head *hgdata.Windows

	// Indices are the window indices in the list.
	Indices []int

	// Seed salts the hashes used to split the list.
	Seed int64
}

// NewSampleList creates a list of every window pair.
// The gaze and head windows must have the same shape.
func NewSampleList(gaze, head *hgdata.Windows, seed int64) (*SampleList, error) {
	ds := &hgdata.Dataset{Gaze: gaze, Head: head}
	if err := ds.Check(); err != nil {
		return nil, err
	}
	res := &SampleList{Gaze: gaze, Head: head, Seed: seed}
	for i := 0; i < gaze.Len(); i++ {
		res.Indices = append(res.Indices, i)
	}
	return res, nil
}

// Len returns the number of samples.
func (s *SampleList) Len() int {
	return len(s.Indices)
}

// Swap swaps two samples.
func (s *SampleList) Swap(i, j int) {
	s.Indices[i], s.Indices[j] = s.Indices[j], s.Indices[i]
}

// Slice copies a sub-slice of the list.
func (s *SampleList) Slice(i, j int) hgsgd.SampleList {
	return &SampleList{
		Gaze:    s.Gaze,
		Head:    s.Head,
		Indices: append([]int{}, s.Indices[i:j]...),
		Seed:    s.Seed,
	}
}

// Hash hashes the window index with the seed.
func (s *SampleList) Hash(i int) []byte {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(s.Seed))
	binary.LittleEndian.PutUint64(buf[8:], uint64(s.Indices[i]))
	res := md5.Sum(buf[:])
	return res[:]
}

// Split partitions the list into training, validation and
// test lists.
// The validation and test lists split the samples not used
// for training evenly.
//
// It fails if any of the three lists would be empty.
func (s *SampleList) Split(trainingRate float64) (train, val, test *SampleList, err error) {
	tr, v, te, err := hgsgd.SplitThree(s, trainingRate, (1-trainingRate)/2)
	if err != nil {
		return nil, nil, nil, err
	}
	train, val, test = tr.(*SampleList), v.(*SampleList), te.(*SampleList)
	for _, part := range []struct {
		name string
		list *SampleList
	}{{"training", train}, {"validation", val}, {"test", test}} {
		if part.list.Len() == 0 {
			return nil, nil, nil, fmt.Errorf("split %d samples with training rate %g: "+
				"empty %s set", s.Len(), trainingRate, part.name)
		}
	}
	return train, val, test, nil
}
