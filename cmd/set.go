package cmd

import (
	"fmt"
)

// Set stores value under key. With showDiff the change against the previous
// value is printed.
func Set(g Globals, key, value string, showDiff bool) {
	s := OpenSession(g)
	defer s.Close()

	var previous string
	if showDiff {
		var err error
		if previous, _, err = s.Engine.Get(key); err != nil {
			s.Close()
			HandleError(err)
		}
	}

	existed, err := s.Engine.Set(key, value)
	if err != nil {
		s.Close()
		HandleError(err)
	}

	if existed {
		fmt.Printf("Updated %s\n", key)
	} else {
		fmt.Printf("Created %s\n", key)
	}

	if showDiff {
		fmt.Print(ValueDiff(key, previous, value))
	}
}
