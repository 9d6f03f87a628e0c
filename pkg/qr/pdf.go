package qr

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"io"

	"github.com/jung-kurt/gofpdf"
)

const pdfPointsPerMM = 2.8346

// WritePDF embeds the image into a single-page PDF sized to the image and
// writes it to w.
func (i *Image) WritePDF(w io.Writer) error {
	// Encode the image to JPEG format in memory.
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, i.img, &jpeg.Options{Quality: 95}); err != nil {
		return fmt.Errorf("jpeg encoding failed: %w", err)
	}

	// Calculate image dimensions in millimeters for the PDF page size.
	widthMM := float64(i.img.Bounds().Dx()) / pdfPointsPerMM
	heightMM := float64(i.img.Bounds().Dy()) / pdfPointsPerMM

	pageSize := gofpdf.SizeType{Wd: widthMM, Ht: heightMM}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "mm",
		Size:    pageSize,
	})
	pdf.SetTitle("Channel key", true)
	pdf.AddPageFormat("P", pageSize)

	options := gofpdf.ImageOptions{ImageType: "JPEG", ReadDpi: true}
	pdf.RegisterImageOptionsReader("key.jpg", options, buf)
	pdf.ImageOptions("key.jpg", 0, 0, widthMM, heightMM, false, options, 0, "")

	return pdf.Output(w)
}
