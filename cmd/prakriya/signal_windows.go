//go:build windows

package main

import "os"

// Windows 上仅 Ctrl-C 可靠投递。
var stopSignals = []os.Signal{os.Interrupt}
