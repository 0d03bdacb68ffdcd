package tokenizer

import (
	"fmt"
	"strings"
	"testing"
)

var sampleTexts = map[string]string{
	"short": "The quick brown fox jumps over the lazy dog",
	"medium": `A web crawler starts from a handful of seed pages, fetches each one,
        extracts its outgoing links and queues the ones it has not seen before.
        Every fetched page is split into terms that feed an inverted index, and
        the link graph between pages feeds a rank computation.`,
	"long": strings.Repeat(`Search engines combine link analysis with term matching. Pages that
        many other pages point to earn more authority, and queries return the
        pages that contain the most query terms first. `, 20),
}

func BenchmarkTokenize(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for b.Loop() {
				_ = Tokenize(text)
			}
		})
	}
}

func BenchmarkTokenizeParallel(b *testing.B) {
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = Tokenize(text)
		}
	})
}

func BenchmarkDistinctTermsVaryingSize(b *testing.B) {
	base := "crawler frontier politeness robots index rank "
	for _, size := range []int{10, 100, 1000, 5000} {
		text := strings.Repeat(base, size/len(base)+1)[:size]
		b.Run(fmt.Sprintf("bytes_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for b.Loop() {
				_ = DistinctTerms(text)
			}
		})
	}
}
