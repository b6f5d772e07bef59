package source

import (
	"strconv"

	"github.com/b3ngr33n/docuchat-go/internal/rag"
)

// normalizeText chunks a direct text submission with the text-path
// parameters. Metadata is minimal — there is no source path to attribute.
func (n *Normalizer) normalizeText(src Text) ([]rag.Segment, error) {
	chunks := n.cfg.TextChunker.Split(src.Content)

	segments := make([]rag.Segment, 0, len(chunks))
	for i, chunk := range chunks {
		segments = append(segments, rag.Segment{
			Text: chunk,
			Metadata: map[string]string{
				MetaSourceType: "text",
				MetaChunkIndex: strconv.Itoa(i),
			},
		})
	}
	return segments, nil
}
