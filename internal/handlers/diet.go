package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jjenkins/bobbot/internal/extract"
	"github.com/jjenkins/bobbot/internal/model"
	"github.com/jjenkins/bobbot/internal/service"
	"go.uber.org/zap"
)

const (
	msgWhichCafeteria = "어느 식당의 식단표를 찾으시는지 말씀해주세요 (예: 본사 식단 알려줘)."
	msgDietLoadFailed = "식단 정보를 불러오지 못했습니다. 잠시 후 다시 시도해주세요."
)

// DietFinder returns this week's and next week's menus.
type DietFinder interface {
	Weekly(ctx context.Context, cafeteriaID int) ([]model.Diet, error)
}

// DietUploader stores an uploaded menu image.
type DietUploader interface {
	Upload(ctx context.Context, title, yymmdd string, image io.Reader) (*model.Diet, error)
}

// DietSkillHandler answers "which menu is on" questions for the cafeteria
// named in the utterance.
func DietSkillHandler(diets DietFinder, locations *extract.LocationResolver, publicBase string, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req, err := parseSkill(c)
		if err != nil {
			return badSkill(c, err)
		}

		cafeteria, ok := locations.Resolve(req.UserRequest.Utterance)
		if !ok {
			return c.JSON(textResponse(msgWhichCafeteria, cafeteriaReplies(locations)...))
		}

		weeks, err := diets.Weekly(c.UserContext(), cafeteria.ID)
		if err != nil {
			logger.Error("Failed to load diets", zap.Int("cafeteria_id", cafeteria.ID), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(textResponse(msgDietLoadFailed))
		}
		if len(weeks) == 0 {
			return c.JSON(textResponse(fmt.Sprintf("%s 식당의 식단 데이터가 현재 없습니다. 나중에 다시 확인해주세요.", cafeteria.Name)))
		}

		cards := make([]BasicCard, 0, len(weeks))
		for _, d := range weeks {
			img := publicURL(c, publicBase, d.ImgURL)
			cards = append(cards, BasicCard{
				Title:     fmt.Sprintf("%s 주간식단표 (%s 부터)", cafeteria.Name, d.StartDate.Format("060102")),
				Thumbnail: &Thumbnail{ImageURL: img},
				Buttons:   []Button{webLink("크게보기", img)},
			})
		}
		return c.JSON(carouselResponse(cards))
	}
}

// cafeteriaReplies offers one "<name> 식단" button per cafeteria.
func cafeteriaReplies(locations *extract.LocationResolver) []QuickReply {
	names := locations.Names()
	replies := make([]QuickReply, len(names))
	for i, name := range names {
		replies[i] = QuickReply{Action: "message", Label: name, MessageText: name + " 식단"}
	}
	return replies
}

type dietUploadForm struct {
	PostTitle      string `validate:"required"`
	PostCreateDate string `validate:"required,len=6,numeric"`
}

var validate = validator.New()

// DietUploadHandler accepts a multipart menu upload: post_title,
// post_create_date (yymmdd) and upload_file.
func DietUploadHandler(uploader DietUploader, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		form := dietUploadForm{
			PostTitle:      strings.TrimSpace(c.FormValue("post_title")),
			PostCreateDate: strings.TrimSpace(c.FormValue("post_create_date")),
		}
		if err := validate.Struct(form); err != nil {
			return uploadRejected(c, err.Error())
		}

		fh, err := c.FormFile("upload_file")
		if err != nil {
			return uploadRejected(c, "upload_file is required")
		}
		if !strings.Contains(fh.Header.Get("Content-Type"), "image") {
			return uploadRejected(c, "Not valid image file")
		}

		f, err := fh.Open()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": "failed to read upload"})
		}
		defer f.Close()

		mtype, err := mimetype.DetectReader(f)
		if err != nil || !strings.HasPrefix(mtype.String(), "image/") {
			return uploadRejected(c, "Not valid image file")
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": "failed to read upload"})
		}

		diet, err := uploader.Upload(c.UserContext(), form.PostTitle, form.PostCreateDate, f)
		if errors.Is(err, service.ErrValidation) {
			return uploadRejected(c, err.Error())
		}
		if err != nil {
			logger.Error("Diet upload failed", zap.String("post_title", form.PostTitle), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": "failed to store diet"})
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"message":          "Image uploaded successfully and diet information saved.",
			"image_url":        diet.ImgURL,
			"start_date":       diet.StartDate.Format("060102"),
			"post_title":       diet.PostTitle,
			"post_create_date": diet.PostCreateDate.Format("060102"),
			"cafeteria_id":     diet.CafeteriaID,
		})
	}
}

func uploadRejected(c *fiber.Ctx, detail string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"detail": detail})
}
