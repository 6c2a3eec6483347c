package main

import "errors"

var errInvalidTrustedRoot = errors.New("opcua-scdemo: trusted root file contains no usable certificate")

var errWrappedKeyTruncated = errors.New("opcua-scdemo: wrapped key file is too short to contain a salt and IV")
