// Package parser decodes exported flight recordings into LogRecordings.
package parser

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rislab/flight-review/internal/models"
)

// sniffLen is how many leading bytes decoders get to look at.
const sniffLen = 512

// Decoder defines the interface for recording decoders.
type Decoder interface {
	// Name returns the unique name of the decoder.
	Name() string
	// CanDecode reports whether a file with this name and leading bytes is in
	// the decoder's format.
	CanDecode(name string, head []byte) bool
	// Decode reads a whole recording.
	Decode(r io.Reader) (*models.LogRecording, error)
}

// DecodeFile opens path, unwraps gzip if present, picks a decoder and decodes.
// It returns the recording and the name of the decoder used.
func (r *Registry) DecodeFile(path string) (*models.LogRecording, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	name := filepath.Base(path)
	br := bufio.NewReader(f)
	if magic, _ := br.Peek(2); len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, "", fmt.Errorf("opening gzip stream: %w", err)
		}
		defer zr.Close()
		br = bufio.NewReader(zr)
		name = strings.TrimSuffix(name, ".gz")
	}

	head, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, "", fmt.Errorf("reading %s: %w", name, err)
	}

	d, err := r.FindDecoder(name, head)
	if err != nil {
		return nil, "", err
	}
	rec, err := d.Decode(br)
	if err != nil {
		return nil, d.Name(), fmt.Errorf("%s: %w", d.Name(), err)
	}
	return finish(rec), d.Name(), nil
}

// finish fills nil maps, interns names and orders topics by name and instance.
func finish(rec *models.LogRecording) *models.LogRecording {
	if rec.Info == nil {
		rec.Info = make(map[string]string)
	}
	if rec.InfoMultiple == nil {
		rec.InfoMultiple = make(map[string][][]string)
	}
	names := GetGlobalIntern()
	for i := range rec.Topics {
		t := &rec.Topics[i]
		t.Name = names.Intern(t.Name)
		if t.Fields == nil {
			t.Fields = make(map[string][]float64)
			continue
		}
		fields := make(map[string][]float64, len(t.Fields))
		for k, v := range t.Fields {
			fields[names.Intern(k)] = v
		}
		t.Fields = fields
	}
	sort.SliceStable(rec.Topics, func(i, j int) bool {
		a, b := rec.Topics[i], rec.Topics[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.MultiID < b.MultiID
	})
	return rec
}

func hasExt(name string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
