//go:build !windows

package main

import (
	"os"
	"syscall"
)

// stopSignals: 触发取消的信号。
var stopSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
