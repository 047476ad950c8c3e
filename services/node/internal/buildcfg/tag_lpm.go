//go:build lpm

package buildcfg

func init() { tagLPM = true }
