package handlers

import (
	"errors"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const skillVersion = "2.0"

// notFoundImage is the thumbnail shown on "nothing found" cards.
const notFoundImage = "https://user-images.githubusercontent.com/24848110/33519396-7e56363c-d79d-11e7-969b-09782f5ccbab.png"

// SkillRequest is the part of a chatbot skill payload the handlers read.
type SkillRequest struct {
	UserRequest struct {
		Utterance string `json:"utterance"`
		User      struct {
			ID string `json:"id"`
		} `json:"user"`
	} `json:"userRequest"`
}

// SkillResponse is a version 2.0 skill reply.
type SkillResponse struct {
	Version  string        `json:"version"`
	Template SkillTemplate `json:"template"`
}

type SkillTemplate struct {
	Outputs      []SkillOutput `json:"outputs"`
	QuickReplies []QuickReply  `json:"quickReplies,omitempty"`
}

// SkillOutput holds exactly one of its fields.
type SkillOutput struct {
	SimpleText *SimpleText `json:"simpleText,omitempty"`
	BasicCard  *BasicCard  `json:"basicCard,omitempty"`
	Carousel   *Carousel   `json:"carousel,omitempty"`
}

type SimpleText struct {
	Text string `json:"text"`
}

type BasicCard struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Thumbnail   *Thumbnail `json:"thumbnail,omitempty"`
	Buttons     []Button   `json:"buttons,omitempty"`
}

type Thumbnail struct {
	ImageURL string `json:"imageUrl"`
}

type Button struct {
	Action     string `json:"action"`
	Label      string `json:"label"`
	WebLinkURL string `json:"webLinkUrl,omitempty"`
}

type Carousel struct {
	Type  string      `json:"type"`
	Items []BasicCard `json:"items"`
}

type QuickReply struct {
	Action      string `json:"action"`
	Label       string `json:"label"`
	MessageText string `json:"messageText"`
}

func textResponse(text string, replies ...QuickReply) SkillResponse {
	return SkillResponse{
		Version: skillVersion,
		Template: SkillTemplate{
			Outputs:      []SkillOutput{{SimpleText: &SimpleText{Text: text}}},
			QuickReplies: replies,
		},
	}
}

func cardResponse(card BasicCard) SkillResponse {
	return SkillResponse{
		Version:  skillVersion,
		Template: SkillTemplate{Outputs: []SkillOutput{{BasicCard: &card}}},
	}
}

func carouselResponse(cards []BasicCard) SkillResponse {
	return SkillResponse{
		Version: skillVersion,
		Template: SkillTemplate{Outputs: []SkillOutput{{
			Carousel: &Carousel{Type: "basicCard", Items: cards},
		}}},
	}
}

func webLink(label, target string) Button {
	return Button{Action: "webLink", Label: label, WebLinkURL: target}
}

// parseSkill decodes the payload and rejects one without an utterance.
func parseSkill(c *fiber.Ctx) (*SkillRequest, error) {
	var req SkillRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.UserRequest.Utterance) == "" {
		return nil, errors.New("userRequest.utterance is required")
	}
	return &req, nil
}

func badSkill(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"detail": err.Error()})
}

// publicURL joins a served relative path onto base, escaping each segment.
// An empty base falls back to the origin of the current request.
func publicURL(c *fiber.Ctx, base, rel string) string {
	if base == "" {
		base = c.BaseURL()
	}
	segments := strings.Split(strings.TrimPrefix(rel, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segments, "/")
}
