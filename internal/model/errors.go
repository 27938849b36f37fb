package model

import "errors"

var (
	ErrNotFitted      = errors.New("pipeline is not fitted")
	ErrTooFewExamples = errors.New("not enough training examples")
	ErrClassTooSmall  = errors.New("class too small to stratify")
	ErrSingleClass    = errors.New("training labels contain a single class")
)
