package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"vitalsense/internal/bootstrap"
)

func main() {
	var opts bootstrap.Options
	flag.StringVar(&opts.ConfigPath, "config", "", "path to config.yaml (defaults to probing)")
	flag.StringVar(&opts.FramesDir, "frames", "", "directory of prerecorded frames instead of the demo camera")
	flag.StringVar(&opts.AudioPath, "audio", "", "prerecorded mp3 file instead of the demo microphone")
	flag.Parse()

	fmt.Printf("[%s] [INFO] [BOOT] starting vitalsense...\n", time.Now().Format("2006-01-02 15:04:05.000"))
	if err := bootstrap.Run(context.Background(), opts); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "vitalsense failed: %v\n", err)
		os.Exit(1)
	}
}
