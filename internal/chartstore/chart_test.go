package chartstore

import (
	"errors"
	"sync"
	"testing"

	"probchart/internal/updater"
)

// go test -v --run TestChartAppendAndSnapshot
func TestChartAppendAndSnapshot(t *testing.T) {
	c := NewChart()
	if err := c.AddSeries(SeriesSpec{Source: SourceESPN, IsHomeTeam: true, Color: "#1f77b4"}); err != nil {
		t.Fatalf("AddSeries: %v", err)
	}

	if err := c.AppendSeriesData(SourceESPN, []updater.TimePoint{{Time: 1, Value: 50}, {Time: 2, Value: 51}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := c.AppendSeriesData(SourceESPN, []updater.TimePoint{{Time: 3, Value: 52}}); err != nil {
		t.Fatalf("append: %v", err)
	}

	s, ok := c.Series(SourceESPN)
	if !ok {
		t.Fatal("series missing")
	}
	if len(s.Points) != 3 || s.Points[2].Value != 52 {
		t.Errorf("unexpected points: %v", s.Points)
	}
	if !s.IsHomeTeam || s.Color != "#1f77b4" {
		t.Errorf("metadata lost: %+v", s.SeriesSpec)
	}

	// snapshot must not alias internal storage
	s.Points[0].Value = 0
	again, _ := c.Series(SourceESPN)
	if again.Points[0].Value != 50 {
		t.Error("snapshot aliases chart storage")
	}
}

// go test -v --run TestChartRejectsOutOfOrder
func TestChartRejectsOutOfOrder(t *testing.T) {
	c := NewChart()
	_ = c.AddSeries(SeriesSpec{Source: "KXNBAGAME-LAL"})
	_ = c.AppendSeriesData("KXNBAGAME-LAL", []updater.TimePoint{{Time: 10, Value: 40}})

	err := c.AppendSeriesData("KXNBAGAME-LAL", []updater.TimePoint{{Time: 10, Value: 41}})
	if !errors.Is(err, ErrOutOfOrder) {
		t.Fatalf("err = %v, want ErrOutOfOrder", err)
	}
	err = c.AppendSeriesData("KXNBAGAME-LAL", []updater.TimePoint{{Time: 12, Value: 41}, {Time: 11, Value: 42}})
	if !errors.Is(err, ErrOutOfOrder) {
		t.Fatalf("err = %v, want ErrOutOfOrder", err)
	}
	if c.CountAll() != 1 {
		t.Errorf("CountAll = %d, want 1", c.CountAll())
	}
}

// go test -v --run TestChartMissingAndDestroyed
func TestChartMissingAndDestroyed(t *testing.T) {
	c := NewChart()
	if err := c.AppendSeriesData("nope", []updater.TimePoint{{Time: 1}}); !errors.Is(err, ErrSeriesNotFound) {
		t.Errorf("err = %v, want ErrSeriesNotFound", err)
	}

	_ = c.AddSeries(SeriesSpec{Source: SourceESPN})
	c.Destroy()
	if err := c.SetSeriesData(SourceESPN, nil); !errors.Is(err, ErrSeriesNotFound) {
		t.Errorf("err = %v, want ErrSeriesNotFound", err)
	}
	if err := c.AddSeries(SeriesSpec{Source: SourceESPN}); !errors.Is(err, ErrSeriesNotFound) {
		t.Errorf("AddSeries after Destroy err = %v", err)
	}
	if len(c.All()) != 0 {
		t.Error("destroyed chart still lists series")
	}
}

// go test -v --run TestChartSetSortsAndOrder
func TestChartSetSortsAndOrder(t *testing.T) {
	c := NewChart()
	_ = c.AddSeries(SeriesSpec{Source: SourceESPN})
	_ = c.AddSeries(SeriesSpec{Source: "KXNBAGAME-BOS"})
	_ = c.AddSeries(SeriesSpec{Source: "KXNBAGAME-NYK"})
	c.RemoveSeries("KXNBAGAME-BOS")

	_ = c.SetSeriesData(SourceESPN, []updater.TimePoint{{Time: 5}, {Time: 1}, {Time: 3}})
	s, _ := c.Series(SourceESPN)
	for i := 1; i < len(s.Points); i++ {
		if s.Points[i].Time < s.Points[i-1].Time {
			t.Fatalf("set data not sorted: %v", s.Points)
		}
	}

	all := c.All()
	if len(all) != 2 || all[0].Source != SourceESPN || all[1].Source != "KXNBAGAME-NYK" {
		t.Errorf("unexpected series order: %+v", all)
	}
}

// go test -v --run TestChartWithUpdater
func TestChartWithUpdater(t *testing.T) {
	c := NewChart()
	_ = c.AddSeries(SeriesSpec{Source: SourceESPN})
	u := updater.New(c, updater.WithThrottle(0))
	defer u.Close()

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				u.Enqueue(SourceESPN, []updater.RawPoint{updater.NewRawPoint(float64(i*4+g), 50)})
			}
		}(g)
	}
	wg.Wait()
	u.Flush()

	s, _ := c.Series(SourceESPN)
	for i := 1; i < len(s.Points); i++ {
		if s.Points[i].Time <= s.Points[i-1].Time {
			t.Fatalf("chart out of order at %d: %v", i, s.Points[i-1:i+1])
		}
	}
	if u.Stats().Pending != 0 {
		t.Error("points left pending")
	}
}
