package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/jjenkins/bobbot/internal/model"
	"github.com/jjenkins/bobbot/internal/templates"
	"go.uber.org/zap"
)

const (
	maxRegulationCards = 10
	msgNoRegulation    = "관련 규정을 찾지 못했습니다."
)

// typeWords are dropped from utterances before searching titles.
var typeWords = []string{"규정", "내규", "지침", "예규"}

// RegulationFinder searches and lists stored regulations.
type RegulationFinder interface {
	SearchTitles(ctx context.Context, words []string, limit int) ([]model.Regulation, error)
	List(ctx context.Context, regType string) ([]model.Regulation, error)
	GetByID(ctx context.Context, id int) (*model.Regulation, error)
}

// LinkResolver turns a portal href into an absolute URL.
type LinkResolver interface {
	Resolve(ref string) (string, error)
}

// searchWords strips type words and splits what is left on whitespace.
func searchWords(utterance string) []string {
	for _, w := range typeWords {
		utterance = strings.ReplaceAll(utterance, w, "")
	}
	return strings.Fields(utterance)
}

// RegulationSkillHandler answers a title search with up to ten cards.
func RegulationSkillHandler(regs RegulationFinder, portal LinkResolver, publicBase string, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req, err := parseSkill(c)
		if err != nil {
			return badSkill(c, err)
		}
		utterance := req.UserRequest.Utterance

		var found []model.Regulation
		if words := searchWords(utterance); len(words) > 0 {
			found, err = regs.SearchTitles(c.UserContext(), words, maxRegulationCards)
			if err != nil {
				logger.Error("Regulation search failed", zap.Strings("words", words), zap.Error(err))
				return c.Status(fiber.StatusInternalServerError).JSON(textResponse("규정 검색 중 오류가 발생했습니다."))
			}
		}

		if len(found) == 0 {
			return c.JSON(cardResponse(BasicCard{
				Title:       msgNoRegulation,
				Description: "입력한 메세지 : " + utterance,
				Thumbnail:   &Thumbnail{ImageURL: notFoundImage},
			}))
		}

		cards := make([]BasicCard, 0, len(found))
		for _, r := range found {
			cards = append(cards, regulationCard(c, r, portal, publicBase))
		}
		return c.JSON(carouselResponse(cards))
	}
}

func regulationCard(c *fiber.Ctx, r model.Regulation, portal LinkResolver, publicBase string) BasicCard {
	card := BasicCard{Title: r.Title, Description: describe(r)}
	if r.HTMLURL.Valid && r.HTMLURL.String != "" {
		card.Buttons = append(card.Buttons, webLink("바로보기", publicURL(c, publicBase, "regulation/"+r.HTMLURL.String)))
	}
	if r.FileURL.Valid && r.FileURL.String != "" {
		if link, err := portal.Resolve(r.FileURL.String); err == nil {
			card.Buttons = append(card.Buttons, webLink("다운로드", link))
		}
	}
	return card
}

func describe(r model.Regulation) string {
	desc := "게시일 " + r.CreateDate.Format("2006-01-02")
	if r.Type.Valid {
		desc = fmt.Sprintf("[%s] %s", r.Type.String, desc)
	}
	if r.EnforceDate.Valid {
		desc += " · 시행일 " + r.EnforceDate.Time.Format("2006-01-02")
	}
	return desc
}

// RegulationsHandler renders the HTML index, optionally filtered by ?type=.
func RegulationsHandler(regs RegulationFinder, portal LinkResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		regType := c.Query("type")
		if regType != "" && !model.IsRegulationType(regType) {
			return c.Status(fiber.StatusBadRequest).SendString("Unknown regulation type")
		}

		list, err := regs.List(c.UserContext(), regType)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString("Error loading regulations")
		}

		rows := make([]templates.RegulationRow, 0, len(list))
		for _, r := range list {
			row := templates.RegulationRow{
				ID:         r.ID,
				Title:      r.Title,
				Type:       r.Type.String,
				CreateDate: r.CreateDate,
				Attempts:   r.ConversionAttempts,
			}
			if r.HTMLURL.Valid {
				row.ViewURL = publicURL(c, "/", "regulation/"+r.HTMLURL.String)
			}
			if r.FileURL.Valid {
				row.DownloadURL, _ = portal.Resolve(r.FileURL.String)
			}
			rows = append(rows, row)
		}

		page := templates.Regulations(rows, regType)
		handler := adaptor.HTTPHandler(templ.Handler(page))

		return handler(c)
	}
}

// RegulationDetailHandler redirects to the converted page of a regulation,
// or to its attachment when no page exists yet.
func RegulationDetailHandler(regs RegulationFinder, portal LinkResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.Atoi(c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).SendString("Invalid regulation id")
		}

		reg, err := regs.GetByID(c.UserContext(), id)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString("Error loading regulation")
		}
		if reg == nil {
			return c.Status(fiber.StatusNotFound).SendString("Regulation not found")
		}

		if reg.HTMLURL.Valid && reg.HTMLURL.String != "" {
			return c.Redirect(publicURL(c, "/", "regulation/"+reg.HTMLURL.String), fiber.StatusFound)
		}
		if reg.FileURL.Valid && reg.FileURL.String != "" {
			if link, err := portal.Resolve(reg.FileURL.String); err == nil {
				return c.Redirect(link, fiber.StatusFound)
			}
		}
		return c.Status(fiber.StatusNotFound).SendString("Regulation has no document")
	}
}
