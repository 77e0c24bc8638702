package generator

import (
	"bytes"
	"encoding/base64"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
)

func encodedPNG(t *testing.T, c color.Color) string {
	t.Helper()
	img := imaging.New(64, 48, c)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func sampleRequest(t *testing.T, pages int) BuildRequest {
	t.Helper()
	req := BuildRequest{Title: "Moss and Pebble", Cover: encodedPNG(t, color.NRGBA{200, 60, 40, 255})}
	for i := 0; i < pages; i++ {
		req.Texts = append(req.Texts, "Moss rolled down the hill.")
		req.Images = append(req.Images, encodedPNG(t, color.NRGBA{40, 80, 200, 255}))
	}
	return req
}

