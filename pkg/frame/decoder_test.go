package frame

import (
	"bytes"
	"math/rand"
	"reflect"
	"sync"
	"testing"

	"github.com/bft-labs/tickship/pkg/log"
)

const exampleStream = "[1468009895549670789,397807]\n" +
	"[1468009895567246398,758675]\n" +
	"[1468009895577565428,538795]\n"

var exampleRecords = []Record{
	{Timestamp: "1468009895549670789", Value: "397807"},
	{Timestamp: "1468009895567246398", Value: "758675"},
	{Timestamp: "1468009895577565428", Value: "538795"},
}

// recordingLogger captures messages by level for assertions.
type recordingLogger struct {
	mu    sync.Mutex
	warns []string
	debug []string
}

func (l *recordingLogger) Debug(msg string, fields ...log.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debug = append(l.debug, msg)
}
func (l *recordingLogger) Info(msg string, fields ...log.Field) {}
func (l *recordingLogger) Warn(msg string, fields ...log.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}
func (l *recordingLogger) Error(msg string, fields ...log.Field) {}
func (l *recordingLogger) With(fields ...log.Field) log.Logger  { return l }

func feedChunks(d *Decoder, chunks [][]byte) []Record {
	var out []Record
	for _, c := range chunks {
		out = append(out, d.Feed(c)...)
	}
	return out
}

// splitAt cuts s at the given ascending offsets.
func splitAt(s []byte, offsets ...int) [][]byte {
	var chunks [][]byte
	prev := 0
	for _, off := range offsets {
		chunks = append(chunks, s[prev:off])
		prev = off
	}
	return append(chunks, s[prev:])
}

// delimiterOffsets returns cut points immediately before and after every bracket.
func delimiterOffsets(s []byte) []int {
	var offs []int
	last := -1
	for i, b := range s {
		if b != '[' && b != ']' {
			continue
		}
		if i > last {
			offs = append(offs, i)
		}
		offs = append(offs, i+1)
		last = i + 1
	}
	if n := len(offs); n > 0 && offs[n-1] == len(s) {
		offs = offs[:n-1]
	}
	return offs
}

func byteChunks(s []byte) [][]byte {
	chunks := make([][]byte, len(s))
	for i := range s {
		chunks[i] = s[i : i+1]
	}
	return chunks
}

func TestDecoder_ChunkInvariance(t *testing.T) {
	stream := []byte(exampleStream)

	tests := []struct {
		name   string
		chunks [][]byte
	}{
		{"single chunk", [][]byte{stream}},
		{"split after byte 5", splitAt(stream, 5)},
		{"split at every delimiter", splitAt(stream, delimiterOffsets(stream)...)},
		{"byte at a time", byteChunks(stream)},
		{"empty chunks interleaved", [][]byte{nil, stream[:10], {}, stream[10:], nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := feedChunks(NewDecoder(), tt.chunks)
			if !reflect.DeepEqual(got, exampleRecords) {
				t.Errorf("records = %v, want %v", got, exampleRecords)
			}
		})
	}
}

func TestDecoder_ChunkInvariance_RandomPartitions(t *testing.T) {
	stream := []byte(exampleStream + "junk]\n[1[2,3]\n[abc][9,9][" + exampleStream + "[12345")
	want := NewDecoder().Feed(stream)
	if len(want) == 0 {
		t.Fatal("reference decode produced no records")
	}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		var offsets []int
		for off := 1; off < len(stream); off++ {
			if rng.Intn(4) == 0 {
				offsets = append(offsets, off)
			}
		}
		got := feedChunks(NewDecoder(), splitAt(stream, offsets...))
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("partition %v: records = %v, want %v", offsets, got, want)
		}
	}
}

func TestDecoder_FillerIgnored(t *testing.T) {
	stream := "\n\n   leading noise\n" +
		"[1468009895549670789,397807]\r\n\r\n" +
		"   [1468009895567246398,758675]  \t\n" +
		"xyz[1468009895577565428,538795]\n\n\n"

	got := NewDecoder().Feed([]byte(stream))
	if !reflect.DeepEqual(got, exampleRecords) {
		t.Errorf("records = %v, want %v", got, exampleRecords)
	}
}

func TestDecoder_UnterminatedTrailingFrame(t *testing.T) {
	d := NewDecoder()
	got := d.Feed([]byte(exampleStream + "[999,"))

	if !reflect.DeepEqual(got, exampleRecords) {
		t.Errorf("records = %v, want %v", got, exampleRecords)
	}
	if !d.InFrame() {
		t.Error("decoder should hold an open frame")
	}
	if d.Buffered() != len("999,") {
		t.Errorf("Buffered() = %d, want %d", d.Buffered(), len("999,"))
	}

	if n := d.Reset(); n != len("999,") {
		t.Errorf("Reset() = %d, want %d", n, len("999,"))
	}
	if d.InFrame() || d.Buffered() != 0 {
		t.Error("decoder should be idle after Reset")
	}

	// The closing bracket arriving after teardown must not revive the frame.
	if got := d.Feed([]byte("1]")); len(got) != 0 {
		t.Errorf("records after reset = %v, want none", got)
	}
	if d.Stats().StrayClosers != 1 {
		t.Errorf("StrayClosers = %d, want 1", d.Stats().StrayClosers)
	}
}

func TestDecoder_IdempotentRerun(t *testing.T) {
	stream := []byte(exampleStream + "[abc]\n[1[2,3]\n[5,3]")
	first := NewDecoder().Feed(stream)
	second := NewDecoder().Feed(stream)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("re-run differs: %v vs %v", first, second)
	}
}

func TestDecoder_NoCrossFrameLeakage(t *testing.T) {
	stream := []byte("[11,22][33,44][55,66]")
	want := []Record{{Timestamp: "11", Value: "22"}, {Timestamp: "33", Value: "44"}, {Timestamp: "55", Value: "66"}}

	for _, chunks := range [][][]byte{
		{stream},
		byteChunks(stream),
		splitAt(stream, delimiterOffsets(stream)...),
	} {
		got := feedChunks(NewDecoder(), chunks)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("records = %v, want %v", got, want)
		}
	}
}

func TestDecoder_NestedOpen(t *testing.T) {
	stream := []byte("[1[2,3]")

	tests := []struct {
		name   string
		policy NestedPolicy
		want   []Record
	}{
		{"literal keeps bracket as data", NestedLiteral, []Record{{Timestamp: "1[2", Value: "3"}}},
		{"restart drops earlier bytes", NestedRestart, []Record{{Timestamp: "2", Value: "3"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &recordingLogger{}
			d := NewDecoder(WithNestedPolicy(tt.policy), WithLogger(logger))
			got := feedChunks(d, byteChunks(stream))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("records = %v, want %v", got, tt.want)
			}
			if d.Stats().Nested != 1 {
				t.Errorf("Nested = %d, want 1", d.Stats().Nested)
			}
			if len(logger.warns) != 1 {
				t.Errorf("warnings = %v, want one nested-open warning", logger.warns)
			}
		})
	}
}

func TestDecoder_RejectedFramesAreDropped(t *testing.T) {
	logger := &recordingLogger{}
	d := NewDecoder(WithLogger(logger))

	got := d.Feed([]byte("[abc]\n[]\n[5,3]\n[,]\n"))
	want := []Record{{Timestamp: "5", Value: "3"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("records = %v, want %v", got, want)
	}

	st := d.Stats()
	if st.Frames != 4 || st.Rejected != 3 || st.Records != 1 {
		t.Errorf("stats = %+v, want 4 frames, 3 rejected, 1 record", st)
	}
	if len(logger.warns) != 3 {
		t.Errorf("warnings = %v, want 3", logger.warns)
	}
}

func TestDecoder_WeakValidationAcceptsGarbage(t *testing.T) {
	// Known weak-validation property: compat mode only looks for a
	// digit,digit sequence, so surrounding garbage passes.
	got := NewDecoder().Feed([]byte("[x5,3y]"))
	want := []Record{{Timestamp: "x5", Value: "3y"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("records = %v, want %v", got, want)
	}

	strict := NewDecoder(WithValidator(ForMode(ModeStrict)))
	if got := strict.Feed([]byte("[x5,3y]")); len(got) != 0 {
		t.Errorf("strict records = %v, want none", got)
	}
	if got := strict.Feed([]byte("[5,3]")); len(got) != 1 {
		t.Errorf("strict records = %v, want one", got)
	}
}

func TestDecoder_MaxFrameBytes(t *testing.T) {
	stream := []byte("[123456789,1]\n[1,2]\n")

	for _, chunks := range [][][]byte{{stream}, byteChunks(stream)} {
		d := NewDecoder(WithMaxFrameBytes(8))
		got := feedChunks(d, chunks)
		want := []Record{{Timestamp: "1", Value: "2"}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("records = %v, want %v", got, want)
		}
		st := d.Stats()
		if st.Abandoned != 1 {
			t.Errorf("Abandoned = %d, want 1", st.Abandoned)
		}
		if st.StrayClosers != 1 {
			t.Errorf("StrayClosers = %d, want 1", st.StrayClosers)
		}
	}
}

func TestDecoder_MaxFrameBytes_ExactLimit(t *testing.T) {
	d := NewDecoder(WithMaxFrameBytes(3))
	got := d.Feed([]byte("[1,2]"))
	if len(got) != 1 {
		t.Errorf("records = %v, want one record at the exact limit", got)
	}
}

func TestDecoder_Unbounded(t *testing.T) {
	payload := bytes.Repeat([]byte("7"), DefaultMaxFrameBytes*2)
	stream := append([]byte("["), payload...)
	stream = append(stream, []byte(",1]")...)

	if got := NewDecoder().Feed(stream); len(got) != 0 {
		t.Error("default cap should abandon an oversized frame")
	}
	if got := NewDecoder(WithMaxFrameBytes(0)).Feed(stream); len(got) != 1 {
		t.Error("zero cap should accept an oversized frame")
	}
}

func TestDecoder_FeedFuncOrder(t *testing.T) {
	d := NewDecoder()
	var got []string
	d.FeedFunc([]byte("[3,1]\n[2,1]\n[1,1]"), func(r Record) {
		got = append(got, r.Timestamp)
	})
	want := []string{"3", "2", "1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("emit order = %v, want %v", got, want)
	}
}

func TestDecoder_RecordDoesNotAliasBuffer(t *testing.T) {
	d := NewDecoder()
	first := d.Feed([]byte("[11,22]"))
	d.Feed([]byte("[99,88]"))
	if first[0].Timestamp != "11" || first[0].Value != "22" {
		t.Errorf("first record mutated: %v", first[0])
	}
}

func TestStats_Sub(t *testing.T) {
	d := NewDecoder()
	d.Feed([]byte("[1,2]"))
	before := d.Stats()
	d.Feed([]byte("[3,4]]"))
	delta := d.Stats().Sub(before)

	if delta.Records != 1 || delta.Frames != 1 || delta.StrayClosers != 1 || delta.Bytes != 6 {
		t.Errorf("delta = %+v", delta)
	}
}

func TestParseNestedPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    NestedPolicy
		wantErr bool
	}{
		{"", NestedLiteral, false},
		{"literal", NestedLiteral, false},
		{"RESTART", NestedRestart, false},
		{"reject", NestedLiteral, true},
	}
	for _, tt := range tests {
		got, err := ParseNestedPolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseNestedPolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseNestedPolicy(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
