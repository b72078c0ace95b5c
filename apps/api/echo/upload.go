package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/academia/lms/storage/media"
)

type uploadApi struct {
	storage *media.Storage
}

func registerUploadAPI(g *echo.Group, deps *Deps) {
	api := uploadApi{storage: deps.Media}
	g.POST("/upload/image", api.uploadImage)
}

func (api *uploadApi) uploadImage(ctx echo.Context) error {
	fh, err := ctx.FormFile("image")
	if err != nil {
		return errNoImage
	}
	src, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer src.Close()

	upload, err := api.storage.SaveImage(fh.Filename, fh.Size, src)
	if err != nil {
		return errors.Wrap(err, "saving image")
	}
	return respond(ctx, http.StatusCreated, echo.Map{"url": upload.URL, "filename": upload.Filename})
}
