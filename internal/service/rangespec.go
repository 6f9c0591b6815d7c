// rangespec.go — разбор заголовка Range (единственный диапазон bytes=).
package service

import (
	"errors"
	"math"
	"strings"
)

// Ошибки разбора Range.
var (
	// ErrMalformedRange — заголовок не разбирается: другая единица,
	// несколько диапазонов, start > end, не цифры.
	ErrMalformedRange = errors.New("некорректный заголовок Range")
	// ErrRangeNotSatisfiable — диапазон синтаксически верен, но не пересекается с ресурсом.
	ErrRangeNotSatisfiable = errors.New("диапазон вне размера ресурса")
)

// ByteRange — окно ресурса [Start, End], границы включительно.
// Для пустого окна End = Start - 1.
type ByteRange struct {
	Start int64
	End   int64
}

// Length возвращает количество байт в окне.
func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

// fullRange — окно на весь ресурс размера size.
func fullRange(size int64) ByteRange {
	return ByteRange{Start: 0, End: size - 1}
}

// ParseRange разбирает значение заголовка Range относительно размера ресурса.
//
// Поддерживаются формы bytes=start-end, bytes=start- и bytes=-N (последние
// N байт). End за пределами ресурса усекается до size-1, суффикс длиннее
// ресурса — до всего ресурса. Start за пределами ресурса, суффикс нулевой
// длины и любой диапазон на пустом ресурсе дают ErrRangeNotSatisfiable.
func ParseRange(header string, size int64) (ByteRange, error) {
	unit, spec, ok := strings.Cut(strings.TrimSpace(header), "=")
	if !ok || !strings.EqualFold(strings.TrimSpace(unit), "bytes") {
		return ByteRange{}, ErrMalformedRange
	}
	if strings.Contains(spec, ",") {
		return ByteRange{}, ErrMalformedRange
	}

	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return ByteRange{}, ErrMalformedRange
	}
	startStr = strings.TrimSpace(startStr)
	endStr = strings.TrimSpace(endStr)

	// Суффиксный диапазон: последние N байт
	if startStr == "" {
		n, ok := parseDigits(endStr)
		if !ok {
			return ByteRange{}, ErrMalformedRange
		}
		if n == 0 || size == 0 {
			return ByteRange{}, ErrRangeNotSatisfiable
		}
		n = min(n, size)
		return ByteRange{Start: size - n, End: size - 1}, nil
	}

	start, ok := parseDigits(startStr)
	if !ok {
		return ByteRange{}, ErrMalformedRange
	}

	end := int64(math.MaxInt64)
	if endStr != "" {
		if end, ok = parseDigits(endStr); !ok {
			return ByteRange{}, ErrMalformedRange
		}
		if start > end {
			return ByteRange{}, ErrMalformedRange
		}
	}

	if start >= size {
		return ByteRange{}, ErrRangeNotSatisfiable
	}

	return ByteRange{Start: start, End: min(end, size-1)}, nil
}

// parseDigits разбирает неотрицательное десятичное число.
// Переполнение насыщается до MaxInt64: такое значение всё равно за пределами ресурса.
func parseDigits(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	var n int64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		d := int64(c - '0')
		if n > (math.MaxInt64-d)/10 {
			n = math.MaxInt64
			continue
		}
		n = n*10 + d
	}
	return n, true
}
