package snapshot

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	domdoc "github.com/kailas-cloud/courtside/internal/domain/document"
	"github.com/kailas-cloud/courtside/internal/domain/shoe"
	"github.com/kailas-cloud/courtside/internal/index"
)

// vectorMagic tags the binary vector artifact.
var vectorMagic = [4]byte{'C', 'S', 'V', 'X'}

const (
	vectorVersion    = 1
	vectorHeaderSize = 16 // magic + version + dimension + count, 4 bytes each
)

// documentDTO is the persisted JSON shape of a document. Vectors live in the index artifact.
type documentDTO struct {
	ID       string      `json:"id"`
	Text     string      `json:"text"`
	Metadata metadataDTO `json:"metadata"`
}

type metadataDTO struct {
	ShoeModel     string           `json:"shoe_model"`
	Source        shoe.Source      `json:"source"`
	Playstyle     []shoe.Playstyle `json:"playstyle,omitempty"`
	WeightClass   shoe.WeightClass `json:"weight_class,omitempty"`
	PriceRange    *shoe.PriceRange `json:"price_range,omitempty"`
	Features      []string         `json:"features,omitempty"`
	Score         *float64         `json:"score,omitempty"`
	URL           string           `json:"url,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
	FootType      string           `json:"foot_type,omitempty"`
	InjurySupport []string         `json:"injury_support,omitempty"`
}

func toDTO(d *domdoc.Document) documentDTO {
	md := d.Meta()
	return documentDTO{
		ID:   d.ID(),
		Text: d.Text(),
		Metadata: metadataDTO{
			ShoeModel:     md.ShoeModel,
			Source:        md.Source,
			Playstyle:     md.Playstyle,
			WeightClass:   md.WeightClass,
			PriceRange:    md.PriceRange,
			Features:      md.Features,
			Score:         md.Score,
			URL:           md.URL,
			Timestamp:     md.Timestamp,
			FootType:      md.FootType,
			InjurySupport: md.InjurySupport,
		},
	}
}

func fromDTO(dto *documentDTO) domdoc.Document {
	m := dto.Metadata
	return domdoc.Reconstruct(dto.ID, dto.Text, domdoc.Metadata{
		ShoeModel:     m.ShoeModel,
		Source:        m.Source,
		Playstyle:     m.Playstyle,
		WeightClass:   m.WeightClass,
		PriceRange:    m.PriceRange,
		Features:      m.Features,
		Score:         m.Score,
		URL:           m.URL,
		Timestamp:     m.Timestamp,
		FootType:      m.FootType,
		InjurySupport: m.InjurySupport,
	}, nil)
}

// encodeDocuments serializes documents as a JSON array in position order.
func encodeDocuments(docs []domdoc.Document) ([]byte, error) {
	dtos := make([]documentDTO, len(docs))
	for i := range docs {
		dtos[i] = toDTO(&docs[i])
	}
	data, err := json.MarshalIndent(dtos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal documents: %w", err)
	}
	return data, nil
}

func decodeDocuments(data []byte) ([]domdoc.Document, error) {
	var dtos []documentDTO
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&dtos); err != nil {
		return nil, fmt.Errorf("unmarshal documents: %w", err)
	}
	docs := make([]domdoc.Document, len(dtos))
	for i := range dtos {
		if dtos[i].ID == "" || dtos[i].Metadata.ShoeModel == "" || !dtos[i].Metadata.Source.IsValid() {
			return nil, fmt.Errorf("document %d: missing id, shoe_model or source", i)
		}
		docs[i] = fromDTO(&dtos[i])
	}
	return docs, nil
}

// encodeVectors serializes the index as a fixed header followed by little-endian float32 rows.
func encodeVectors(idx *index.Index) []byte {
	raw := idx.Raw()
	buf := make([]byte, vectorHeaderSize+len(raw)*4)
	copy(buf[0:4], vectorMagic[:])
	binary.LittleEndian.PutUint32(buf[4:8], vectorVersion)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(idx.Dimension()))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(idx.Size()))
	for i, f := range raw {
		binary.LittleEndian.PutUint32(buf[vectorHeaderSize+i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVectors(data []byte) (*index.Index, error) {
	if len(data) < vectorHeaderSize {
		return nil, fmt.Errorf("vector data too short: %d bytes", len(data))
	}
	if !bytes.Equal(data[0:4], vectorMagic[:]) {
		return nil, fmt.Errorf("vector data has bad magic %q", data[0:4])
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != vectorVersion {
		return nil, fmt.Errorf("unsupported vector format version %d", v)
	}
	dim := int(binary.LittleEndian.Uint32(data[8:12]))
	count := int(binary.LittleEndian.Uint32(data[12:16]))
	body := data[vectorHeaderSize:]
	// Header values are only compared against the body, never multiplied.
	if dim <= 0 || len(body)%4 != 0 || (len(body)/4)%dim != 0 || (len(body)/4)/dim != count {
		return nil, fmt.Errorf("vector data size %d does not match %d x %d", len(body), count, dim)
	}
	raw := make([]float32, len(body)/4)
	for i := range raw {
		raw[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[i*4:]))
	}
	idx, err := index.FromRaw(dim, raw)
	if err != nil {
		return nil, fmt.Errorf("hydrate index: %w", err)
	}
	return idx, nil
}
