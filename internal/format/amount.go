// Package format provides display formatting for Nepali rupee amounts.
// Budgets use the Nepali numbering scale: 1 lakh = 100,000 and
// 1 crore = 10,000,000.
package format

import (
	"fmt"
	"strings"
)

const (
	lakh  = 100_000
	crore = 10_000_000
	arab  = 1_000_000_000
)

// Amount renders a rupee amount at the largest fitting Nepali scale,
// e.g. 25000000 -> "Rs. 2.50 Crore".
func Amount(amount float64) string {
	switch {
	case amount >= arab:
		return fmt.Sprintf("Rs. %.2f Arab", amount/arab)
	case amount >= crore:
		return fmt.Sprintf("Rs. %.2f Crore", amount/crore)
	case amount >= lakh:
		return fmt.Sprintf("Rs. %.2f Lakh", amount/lakh)
	default:
		return fmt.Sprintf("Rs. %s", groupDigits(int64(amount)))
	}
}

// groupDigits inserts Nepali-style digit separators: the last three
// digits form one group, every pair after that forms another
// (1234567 -> "12,34,567").
func groupDigits(n int64) string {
	if n < 0 {
		return "-" + groupDigits(-n)
	}

	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	head := s[:len(s)-3]
	tail := s[len(s)-3:]

	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}

	return strings.Join(groups, ",") + "," + tail
}
