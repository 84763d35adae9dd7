package batch

import "time"

// BatchSize returns how many files form one batch for a job of total files.
func BatchSize(total int) int {
	switch {
	case total <= 100:
		return 20
	case total <= 500:
		return 25
	case total <= 1000:
		return 30
	case total <= 2000:
		return 35
	default:
		return 40
	}
}

// ConcurrencyLimit returns the maximum number of files processed at once.
// Larger jobs run fewer files concurrently to bound memory.
func ConcurrencyLimit(total int) int {
	switch {
	case total <= 100:
		return 3
	case total <= 1000:
		return 2
	default:
		return 1
	}
}

// PacingDelay returns the base pause between batches.
func PacingDelay(total int) time.Duration {
	switch {
	case total <= 100:
		return 400 * time.Millisecond
	case total <= 500:
		return 250 * time.Millisecond
	case total <= 1000:
		return 150 * time.Millisecond
	case total <= 2000:
		return 100 * time.Millisecond
	default:
		return 50 * time.Millisecond
	}
}

// TotalBatches returns ceil(total/size).
func TotalBatches(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}
