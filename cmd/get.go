package cmd

import (
	"fmt"
	"os"
)

// Get prints the value stored under key
func Get(g Globals, key string) {
	s := OpenSession(g)
	defer s.Close()

	value, ok, err := s.Engine.Get(key)
	if err != nil {
		s.Close()
		HandleError(err)
	}
	if !ok {
		s.Close()
		fmt.Fprintf(os.Stderr, "Error: key not found: %s\n", key)
		os.Exit(1)
	}

	fmt.Println(value)
}
