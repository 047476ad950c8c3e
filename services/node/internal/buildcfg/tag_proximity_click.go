//go:build proximity_click

package buildcfg

func init() { tagProx = true }
