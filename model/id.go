package model

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewID returns an opaque identifier like "form_1700000000000_k3j9x2a".
func NewID(prefix string) string {
	var sb strings.Builder
	for i := 0; i < 7; i++ {
		sb.WriteByte(base36[rand.Intn(len(base36))])
	}
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), sb.String())
}
