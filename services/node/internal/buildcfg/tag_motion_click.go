//go:build motion_click

package buildcfg

func init() { tagMotion = true }
