package services

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/HammerMeetNail/campussafe/internal/apperr"
	"github.com/HammerMeetNail/campussafe/internal/models"
)

var ErrTipCategoryNotFound = apperr.New(apperr.KindNotFound, "tip category not found")

type tipsFile struct {
	Tips []models.SafetyTip `yaml:"tips"`
}

// TipService serves the read-only safety tips catalogue.
type TipService struct {
	categories []models.TipCategory
	index      map[string]int
}

func LoadTipService(path string) (*TipService, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tips: %w", err)
	}
	return ParseTips(data)
}

// ParseTips decodes and validates a catalogue. Categories keep the order in
// which they first appear.
func ParseTips(data []byte) (*TipService, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file tipsFile
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing tips: %w", err)
	}

	svc := &TipService{index: map[string]int{}}
	seen := map[string]struct{}{}
	for i, tip := range file.Tips {
		tip.ID = strings.TrimSpace(tip.ID)
		tip.Category = strings.ToLower(strings.TrimSpace(tip.Category))
		switch {
		case tip.ID == "":
			return nil, fmt.Errorf("tip %d: id is required", i)
		case tip.Title == "" || tip.Body == "":
			return nil, fmt.Errorf("tip %s: title and body are required", tip.ID)
		case tip.Category == "":
			return nil, fmt.Errorf("tip %s: category is required", tip.ID)
		}
		if _, dup := seen[tip.ID]; dup {
			return nil, fmt.Errorf("tip %s: duplicate id", tip.ID)
		}
		seen[tip.ID] = struct{}{}

		idx, ok := svc.index[tip.Category]
		if !ok {
			idx = len(svc.categories)
			svc.index[tip.Category] = idx
			svc.categories = append(svc.categories, models.TipCategory{Name: tip.Category})
		}
		svc.categories[idx].Tips = append(svc.categories[idx].Tips, tip)
	}
	return svc, nil
}

func (s *TipService) Categories() []models.TipCategory {
	out := make([]models.TipCategory, len(s.categories))
	copy(out, s.categories)
	return out
}

func (s *TipService) ByCategory(name string) (*models.TipCategory, error) {
	idx, ok := s.index[strings.ToLower(name)]
	if !ok {
		return nil, ErrTipCategoryNotFound
	}
	category := s.categories[idx]
	return &category, nil
}

func (s *TipService) Count() int {
	n := 0
	for _, c := range s.categories {
		n += len(c.Tips)
	}
	return n
}
