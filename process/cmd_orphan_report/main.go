package main

import (
	"flag"
	"fmt"
	"os"

	"regis/process/orphan"
)

func main() {
	base := flag.String("base", "uploads", "blob base directory to scan")
	remove := flag.Bool("remove", false, "delete orphaned blobs instead of reporting")
	flag.Parse()

	if os.Getenv("DB_DSN") == "" {
		fmt.Fprintln(os.Stderr, "DB_DSN not set; export and retry")
		os.Exit(2)
	}

	if err := orphan.Run(*base, *remove); err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		os.Exit(1)
	}
}
