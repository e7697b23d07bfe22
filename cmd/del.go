package cmd

import (
	"fmt"
)

// Delete removes key
func Delete(g Globals, key string) {
	s := OpenSession(g)
	defer s.Close()

	existed, err := s.Engine.Delete(key)
	if err != nil {
		s.Close()
		HandleError(err)
	}

	if existed {
		fmt.Printf("Deleted %s\n", key)
	} else {
		fmt.Printf("Not found: %s\n", key)
	}
}
