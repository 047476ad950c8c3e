//go:build debug_uart1

package buildcfg

func init() { tagUART1 = true }
