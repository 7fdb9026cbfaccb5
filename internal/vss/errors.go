package vss

import "errors"

var errSingularBirkhoffMatrix = errors.New("vss: birkhoff node set yields a singular interpolation matrix")
