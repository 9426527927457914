package harvest

import "github.com/kurihiro0119/bucket-harvest/internal/domain"

// Partition splits repos into at most n contiguous buckets of
// ceil(len(repos)/n) repositories each. Empty buckets are not returned.
func Partition(repos []*domain.Repository, n int) [][]*domain.Repository {
	if n < 1 || len(repos) == 0 {
		return nil
	}

	size := (len(repos) + n - 1) / n
	buckets := make([][]*domain.Repository, 0, n)
	for start := 0; start < len(repos); start += size {
		end := start + size
		if end > len(repos) {
			end = len(repos)
		}
		buckets = append(buckets, repos[start:end])
	}
	return buckets
}
