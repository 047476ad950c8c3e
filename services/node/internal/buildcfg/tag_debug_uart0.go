//go:build debug_uart0

package buildcfg

func init() { tagUART0 = true }
