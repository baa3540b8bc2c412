package storage

import "strings"

func joinGenes(genes []string) string {
	return strings.Join(genes, ";")
}

func splitGenes(s string) []string {
	return strings.Split(s, ";")
}
