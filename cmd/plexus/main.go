package main

import (
	"fmt"
	"os"
	"runtime"
)

func init() {
	// glfw needs every window call on the main thread.
	runtime.LockOSThread()
}

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
