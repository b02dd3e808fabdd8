package stream

import (
	"errors"
	"testing"
)

// go test -v --run TestDecode
func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{name: "progress", in: `{"type":"progress","job_id":"g1","completed":3,"total":10}`, want: TypeProgress},
		{name: "error", in: `{"type":"error","message":"boom"}`, want: TypeError},
		{name: "pong", in: `{"type":"pong","ts":1700000000000}`, want: TypePong},
		{name: "data upper case", in: `{"type":"DATA","source":"espn","points":[{"time":1,"value":2}]}`, want: TypeData},
		{name: "unknown", in: `{"type":"hello"}`, wantErr: ErrUnknownType},
		{name: "missing type", in: `{"points":[]}`, wantErr: ErrUnknownType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Decode([]byte(tt.in))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if m.messageType() != tt.want {
				t.Errorf("type = %s, want %s", m.messageType(), tt.want)
			}
		})
	}

	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid json")
	}
}

// go test -v --run TestDecodeDataWithBadPoint
func TestDecodeDataWithBadPoint(t *testing.T) {
	m, err := Decode([]byte(`{"type":"data","source":"espn","points":[{"time":"oops","value":5},{"time":10,"value":50}],"series":{"KX-BOS":[{"time":1,"value":"x"},{"time":2,"value":48}]}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	d, ok := m.(Data)
	if !ok {
		t.Fatalf("message = %T, want Data", m)
	}

	for source, want := range map[string]int64{"espn": 10, "KX-BOS": 2} {
		var valid []int64
		for _, p := range d.Batches()[source] {
			if tp, ok := p.TimePoint(); ok {
				valid = append(valid, tp.Time)
			}
		}
		if len(valid) != 1 || valid[0] != want {
			t.Errorf("%s valid times = %v, want [%d]", source, valid, want)
		}
	}
}

// go test -v --run TestDataBatches
func TestDataBatches(t *testing.T) {
	m, err := Decode([]byte(`{
		"type": "data",
		"source": "espn",
		"points": [{"time": 100, "value": 52.0}],
		"series": {
			"espn": [{"time": 99, "value": 51.0}],
			"KXNBAGAME-25JAN01LALBOS-LAL": [{"time": 100, "value": 48}, {"time": 101}]
		}
	}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	d := m.(Data)
	b := d.Batches()

	if len(b["espn"]) != 2 {
		t.Errorf("espn points = %d, want 2", len(b["espn"]))
	}
	ticker := b["KXNBAGAME-25JAN01LALBOS-LAL"]
	if len(ticker) != 2 {
		t.Fatalf("ticker points = %d, want 2", len(ticker))
	}
	if _, ok := ticker[1].TimePoint(); ok {
		t.Error("point without value should be invalid")
	}
}

// go test -v --run TestMakeMessageHandler
func TestMakeMessageHandler(t *testing.T) {
	var data, progress, errs, pongs int
	h := MakeMessageHandler(nil, Handlers{
		OnData:     func(Data) { data++ },
		OnProgress: func(p Progress) { progress++ },
		OnError:    func(Error) { errs++ },
		OnPong:     func(Pong) { pongs++ },
	})

	frames := []string{
		`{"type":"data","source":"espn","points":[]}`,
		`{"type":"progress","completed":1,"total":2}`,
		`{"type":"error","message":"x"}`,
		`{"type":"pong"}`,
		`{"type":"subscribed"}`,
		`{garbage`,
	}
	for _, f := range frames {
		h([]byte(f))
	}

	if data != 1 || progress != 1 || errs != 1 || pongs != 1 {
		t.Errorf("counts data=%d progress=%d error=%d pong=%d", data, progress, errs, pongs)
	}

	// nil callbacks are skipped
	MakeMessageHandler(nil, Handlers{})([]byte(`{"type":"data"}`))
}

// go test -v --run TestProgressFinished
func TestProgressFinished(t *testing.T) {
	cases := []struct {
		p    Progress
		want bool
	}{
		{Progress{Completed: 5, Total: 10}, false},
		{Progress{Completed: 10, Total: 10}, true},
		{Progress{Done: true}, true},
		{Progress{}, false},
	}
	for _, c := range cases {
		if got := c.p.Finished(); got != c.want {
			t.Errorf("%+v.Finished() = %v, want %v", c.p, got, c.want)
		}
	}
}
