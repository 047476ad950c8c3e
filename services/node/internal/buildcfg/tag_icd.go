//go:build icd

package buildcfg

func init() { tagICD = true }
