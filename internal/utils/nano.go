package utils

import gonanoid "github.com/matoous/go-nanoid/v2"

var (
	NanoidSize     = 32
	nanoidAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitAlphabet  = "0123456789"
)

// FormTokenSize is the length of the public token embedded in form links.
const FormTokenSize = 10

func NanoID() string {
	return NanoIDSize(NanoidSize)
}

func NanoIDSize(size int) string {
	if size == 0 {
		size = NanoidSize
	}

	return gonanoid.MustGenerate(nanoidAlphabet, size)
}

// PrefixedID returns prefix_<nanoid>, e.g. doc_V1StGXR8Z5jdHi6B.
func PrefixedID(prefix string) string {
	return prefix + "_" + NanoIDSize(16)
}

func FormToken() string {
	return NanoIDSize(FormTokenSize)
}

// Digits returns a random numeric string of length n, used for one time codes.
func Digits(n int) string {
	return gonanoid.MustGenerate(digitAlphabet, n)
}
