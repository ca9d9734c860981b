package utils

import (
	"strconv"
)

func StringToInt(inputStr string, defaultValue int) int {
	input, err := strconv.Atoi(inputStr)
	if err != nil {
		return defaultValue
	}
	return input
}
