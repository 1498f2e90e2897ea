package main

import (
	"fmt"
	"strconv"
	"strings"
)

// parseSelection turns id arguments into a store selection. No arguments or
// the literal "all" select everything, which the store expresses as nil.
func parseSelection(args []string) ([]int64, error) {
	var ids []int64
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if strings.EqualFold(arg, "all") {
			return nil, nil
		}
		id, err := parseID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id %q: expected a positive number or \"all\"", arg)
	}
	return id, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
