package core

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func benchParticipants(n int) []Participant {
	base := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	list := make([]Participant, n)
	for i := range list {
		list[i] = Participant{
			ID:        fmt.Sprintf("p-%05d", i),
			Name:      fmt.Sprintf("参加者 %d", i),
			Company:   fmt.Sprintf("Company %d", i%50),
			Status:    StatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Microsecond),
		}
	}
	return list
}

// ============================================================================
// Board Benchmarks
// ============================================================================

// BenchmarkBoardLoad measures a full reload of a large event.
func BenchmarkBoardLoad(b *testing.B) {
	list := benchParticipants(5000)
	board := NewBoard(nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		board.Load(list)
	}
}

// BenchmarkBoardApplyUpdate is the hot path during doors-open: one check-in
// notification per arrival.
func BenchmarkBoardApplyUpdate(b *testing.B) {
	list := benchParticipants(5000)
	board := NewBoard(nil)
	board.Load(list)
	now := time.Now()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := list[i%len(list)]
		p.Status = StatusCheckedIn
		p.CheckInTime = &now
		board.Apply(UpdateChange(p))
	}
}

// BenchmarkBoardApplyDuplicateInsert covers the dedup check.
func BenchmarkBoardApplyDuplicateInsert(b *testing.B) {
	list := benchParticipants(5000)
	board := NewBoard(nil)
	board.Load(list)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		board.Apply(InsertChange(list[i%len(list)]))
	}
}

// ============================================================================
// Filter Benchmarks
// ============================================================================

func BenchmarkFilter_Text(b *testing.B) {
	list := benchParticipants(5000)
	q := Query{Text: "company 4", Status: FilterAll}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Filter(list, q)
	}
}

func BenchmarkFilter_StatusOnly(b *testing.B) {
	list := benchParticipants(5000)
	q := Query{Status: FilterPending}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Filter(list, q)
	}
}

// ============================================================================
// Import Benchmarks
// ============================================================================

// BenchmarkParseDrafts measures parsing a 1000-row upload.
func BenchmarkParseDrafts(b *testing.B) {
	var sb strings.Builder
	sb.WriteString("\uFEFF氏名,会社名,メモ\n")
	for i := 0; i < 1000; i++ {
		fmt.Fprintf(&sb, "参加者 %d,\"Company, %d\",memo\n", i, i%50)
	}
	data := sb.String()
	s := NewService(nil, nil, nil, ServiceConfig{})

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.parseDrafts(strings.NewReader(data)); err != nil {
			b.Fatal(err)
		}
	}
}
