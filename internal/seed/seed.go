package seed

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/models"
	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/storage"
	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/utils"
)

// Catalog is the static content loaded into the knowledge store.
type Catalog struct {
	Faqs      []Faq       `yaml:"faqs" validate:"dive"`
	Knowledge []Knowledge `yaml:"knowledge" validate:"dive"`
	RoomTypes []RoomType  `yaml:"room_types" validate:"dive"`
	Rooms     []Room      `yaml:"rooms" validate:"dive"`
	Staff     []Staff     `yaml:"staff" validate:"dive"`
}

// Faq is one FAQ entry. Keywords are joined into the comma separated column.
type Faq struct {
	Label    string   `yaml:"label" validate:"required,max=20"`
	Question string   `yaml:"question"`
	Answer   string   `yaml:"answer" validate:"required"`
	Keywords []string `yaml:"keywords"`
	Greeting bool     `yaml:"greeting"`
	Active   *bool    `yaml:"active"`
}

// Knowledge is one free-text fallback entry.
type Knowledge struct {
	Question string   `yaml:"question" validate:"required"`
	Answer   string   `yaml:"answer" validate:"required"`
	Keywords []string `yaml:"keywords"`
}

// RoomType is one catalog room type.
type RoomType struct {
	Name        string   `yaml:"name" validate:"required"`
	Description string   `yaml:"description"`
	HourlyPrice float64  `yaml:"hourly_price" validate:"gte=0"`
	Capacity    int      `yaml:"capacity" validate:"gte=0"`
	Keywords    []string `yaml:"keywords"`
}

// Room is one bookable room. Type refers to a RoomType by name.
type Room struct {
	Number      string   `yaml:"number" validate:"required"`
	Name        string   `yaml:"name"`
	Type        string   `yaml:"type"`
	HourlyPrice float64  `yaml:"hourly_price" validate:"gte=0"`
	Keywords    []string `yaml:"keywords"`
	Available   *bool    `yaml:"available"`
}

// Staff is one roster member. Permissions default to false.
type Staff struct {
	Phone             string `yaml:"phone" validate:"required"`
	Name              string `yaml:"name"`
	CanConfirmArrival bool   `yaml:"can_confirm_arrival"`
	CanCancel         bool   `yaml:"can_cancel"`
	CanModify         bool   `yaml:"can_modify"`
	Active            *bool  `yaml:"active"`
}

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if err := validator.New().Struct(&cat); err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}

	greetings := 0
	for _, f := range cat.Faqs {
		if f.Greeting && enabled(f.Active) {
			greetings++
		}
	}
	if greetings > 1 {
		return nil, fmt.Errorf("invalid seed: %d active greeting FAQs, at most one allowed", greetings)
	}
	return &cat, nil
}

// Apply upserts the catalog into store. FAQs, room types, rooms and staff are
// matched by their natural keys; knowledge entries are only added when their
// question is new.
func Apply(ctx context.Context, store storage.Store, cat *Catalog) error {
	for _, f := range cat.Faqs {
		entry := &models.FaqEntry{
			Label:             f.Label,
			Question:          f.Question,
			Answer:            strings.TrimSpace(f.Answer),
			Keywords:          strings.Join(f.Keywords, ","),
			IsDefaultGreeting: f.Greeting,
			Active:            enabled(f.Active),
		}
		if err := store.SaveFaq(ctx, entry); err != nil {
			return fmt.Errorf("save faq %q: %w", f.Label, err)
		}
	}

	existing, err := store.ListKnowledge(ctx)
	if err != nil {
		return fmt.Errorf("list knowledge: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, k := range existing {
		known[strings.ToLower(strings.TrimSpace(k.Question))] = true
	}
	for _, k := range cat.Knowledge {
		key := strings.ToLower(strings.TrimSpace(k.Question))
		if known[key] {
			continue
		}
		entry := &models.KnowledgeEntry{
			Question: k.Question,
			Answer:   strings.TrimSpace(k.Answer),
			Keywords: strings.Join(k.Keywords, ","),
			Active:   true,
		}
		if err := store.SaveKnowledge(ctx, entry); err != nil {
			return fmt.Errorf("save knowledge %q: %w", k.Question, err)
		}
		known[key] = true
	}

	typeIDs := make(map[string]uint, len(cat.RoomTypes))
	for _, rt := range cat.RoomTypes {
		entry := &models.RoomType{
			Name:        rt.Name,
			Description: rt.Description,
			HourlyPrice: rt.HourlyPrice,
			Capacity:    rt.Capacity,
			Keywords:    strings.Join(rt.Keywords, ","),
		}
		if entry.Capacity == 0 {
			entry.Capacity = models.DefaultPersons
		}
		if err := store.SaveRoomType(ctx, entry); err != nil {
			return fmt.Errorf("save room type %q: %w", rt.Name, err)
		}
		typeIDs[strings.ToLower(rt.Name)] = entry.ID
	}

	for _, r := range cat.Rooms {
		entry := &models.Room{
			Number:      r.Number,
			Name:        r.Name,
			HourlyPrice: r.HourlyPrice,
			Keywords:    strings.Join(r.Keywords, ","),
			Available:   enabled(r.Available),
			Active:      true,
		}
		if r.Type != "" {
			id, ok := typeIDs[strings.ToLower(r.Type)]
			if !ok {
				return fmt.Errorf("room %s: unknown room type %q", r.Number, r.Type)
			}
			entry.RoomTypeID = id
		}
		if err := store.SaveRoom(ctx, entry); err != nil {
			return fmt.Errorf("save room %s: %w", r.Number, err)
		}
	}

	for _, s := range cat.Staff {
		entry := &models.Staff{
			Phone:             utils.NormalizePhone(s.Phone),
			Name:              s.Name,
			CanConfirmArrival: s.CanConfirmArrival,
			CanCancel:         s.CanCancel,
			CanModify:         s.CanModify,
			Active:            enabled(s.Active),
		}
		if err := store.SaveStaff(ctx, entry); err != nil {
			return fmt.Errorf("save staff %s: %w", utils.MaskPhone(entry.Phone), err)
		}
	}

	log.Info().
		Int("faqs", len(cat.Faqs)).
		Int("knowledge", len(cat.Knowledge)).
		Int("room_types", len(cat.RoomTypes)).
		Int("rooms", len(cat.Rooms)).
		Int("staff", len(cat.Staff)).
		Msg("🌱 Seed catalog applied")
	return nil
}

// LoadAndApply is the reload entry point used at startup and by the admin API.
func LoadAndApply(ctx context.Context, store storage.Store, path string) error {
	cat, err := Load(path)
	if err != nil {
		return err
	}
	return Apply(ctx, store, cat)
}

func enabled(flag *bool) bool {
	return flag == nil || *flag
}
