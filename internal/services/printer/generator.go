package printer

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"
	"github.com/velora-wms/pickflow/internal/models"
	"github.com/velora-wms/pickflow/internal/picking"
)

// PickList holds everything the printed pick list needs
type PickList struct {
	Batch     *models.Batch
	Items     []picking.SequenceItem
	PrintedBy string
}

// GeneratePickListPDF renders a batch's frozen sequence as a printable A4
// pick list. The header carries the batch number as a QR code so a scanner
// terminal can pull up the session from the paper copy.
func GeneratePickListPDF(list PickList) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	// Header with batch QR
	qrPng, err := qrcode.Encode(list.Batch.BatchNumber, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("encoding batch QR: %w", err)
	}
	imgOptions := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	_ = pdf.RegisterImageOptionsReader("batch_qr", imgOptions, bytes.NewReader(qrPng))
	pdf.ImageOptions("batch_qr", 175, 10, 25, 25, false, imgOptions, 0, "")

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(160, 8, list.Batch.BatchNumber, "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(160, 5, fmt.Sprintf("Name: %s", list.Batch.Name), "", 1, "L", false, 0, "")
	pdf.CellFormat(160, 5, fmt.Sprintf("Mode: %s   Zones: %s", list.Batch.PickingMode, list.Batch.Zones), "", 1, "L", false, 0, "")
	if list.Batch.AssignedTo != "" {
		pdf.CellFormat(160, 5, fmt.Sprintf("Picker: %s", list.Batch.AssignedTo), "", 1, "L", false, 0, "")
	}
	if list.PrintedBy != "" {
		pdf.CellFormat(160, 5, fmt.Sprintf("Printed by: %s", list.PrintedBy), "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	// Column layout: #, location, item, order, qty, done checkbox
	widths := []float64{10, 30, 70, 35, 15, 15}
	headers := []string{"#", "Location", "Item", "Order", "Qty", "Done"}

	drawHeader := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for i, h := range headers {
			pdf.CellFormat(widths[i], 7, h, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
	}
	drawHeader()

	for i, item := range list.Items {
		if pdf.GetY() > 270 {
			pdf.AddPage()
			drawHeader()
		}

		order := item.OrderNo
		if order == "" {
			// Consolidated pick spanning multiple orders
			order = fmt.Sprintf("%d orders", len(item.Sources))
		}

		name := item.ItemName
		if name == "" {
			name = item.ItemCode
		} else {
			name = fmt.Sprintf("%s (%s)", name, item.ItemCode)
		}
		if len(name) > 45 {
			name = name[:42] + "..."
		}

		pdf.CellFormat(widths[0], 7, fmt.Sprintf("%d", i+1), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[1], 7, item.Location, "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[2], 7, name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[3], 7, order, "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[4], 7, fmt.Sprintf("%d", item.TotalQty), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[5], 7, "", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 5, fmt.Sprintf("%d items total", len(list.Items)), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering pick list: %w", err)
	}
	return buf.Bytes(), nil
}
