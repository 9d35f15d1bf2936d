package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"trade-app/internal/reference"
	"trade-app/internal/types"
)

// Multipart bodies above this size spill to temp files.
const memoryLimit = 8 << 20

func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(memoryLimit); err != nil {
			return fmt.Errorf("%w: cannot parse form: %v", types.ErrValidation, err)
		}
		return nil
	}
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("%w: cannot parse form: %v", types.ErrValidation, err)
	}
	return nil
}

// formValue returns the first non-empty value among names.
func formValue(r *http.Request, names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(r.FormValue(n)); v != "" {
			return v
		}
	}
	return ""
}

func readFile(fh *multipart.FileHeader) (types.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return types.Upload{}, fmt.Errorf("%w: open %s: %v", types.ErrValidation, fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return types.Upload{}, fmt.Errorf("%w: read %s: %v", types.ErrValidation, fh.Filename, err)
	}
	return types.Upload{Name: fh.Filename, Data: data}, nil
}

func formFiles(r *http.Request, name string) ([]types.Upload, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	var out []types.Upload
	for _, fh := range r.MultipartForm.File[name] {
		up, err := readFile(fh)
		if err != nil {
			return nil, err
		}
		if up.Present() {
			out = append(out, up)
		}
	}
	return out, nil
}

func formFile(r *http.Request, name string) (*types.Upload, error) {
	files, err := formFiles(r, name)
	if err != nil || len(files) == 0 {
		return nil, err
	}
	return &files[0], nil
}

// formPosition reads qty and avg_cost. Both blank means no position update.
func formPosition(r *http.Request) (*types.Position, error) {
	qty := formValue(r, "position_qty", "qty")
	cost := formValue(r, "position_avg_cost", "avg_cost")
	if qty == "" && cost == "" {
		return nil, nil
	}
	p := types.Position{Qty: decimal.Zero, AvgCost: decimal.Zero}
	var err error
	if qty != "" {
		if p.Qty, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("%w: qty %q is not a number", types.ErrValidation, qty)
		}
	}
	if cost != "" {
		if p.AvgCost, err = decimal.NewFromString(cost); err != nil {
			return nil, fmt.Errorf("%w: avg_cost %q is not a number", types.ErrValidation, cost)
		}
	}
	return &p, nil
}

func (h *Handler) parseRegister(w http.ResponseWriter, r *http.Request) (types.RegisterRequest, error) {
	if err := h.parseForm(w, r); err != nil {
		return types.RegisterRequest{}, err
	}

	req := types.RegisterRequest{
		Symbol:        formValue(r, "env_symbol", "symbol"),
		DisplayName:   formValue(r, "env_name", "display_name"),
		URLs:          reference.ParseURLs(formValue(r, "env_urls", "urls")),
		Memo:          formValue(r, "env_memo", "memo"),
		MaterialsMode: types.ParseMergeMode(formValue(r, "materials_mode")),
		MemoMode:      types.ParseMergeMode(formValue(r, "memo_mode")),
		PositionMode:  types.ParseMergeMode(formValue(r, "position_mode")),
	}

	var err error
	if req.Position, err = formPosition(r); err != nil {
		return req, err
	}
	if req.DailyChart, err = formFile(r, "daily_image"); err != nil {
		return req, err
	}
	if req.ExtraImages, err = formFiles(r, "extra_images"); err != nil {
		return req, err
	}
	if req.FinancialFile, err = formFile(r, "financial_file"); err != nil {
		return req, err
	}
	return req, nil
}

func (h *Handler) parseJudge(w http.ResponseWriter, r *http.Request) (types.JudgeRequest, error) {
	if err := h.parseForm(w, r); err != nil {
		return types.JudgeRequest{}, err
	}

	req := types.JudgeRequest{
		Symbol: formValue(r, "judge_symbol", "symbol"),
		Memo:   formValue(r, "judge_memo", "memo"),
	}
	var err error
	if req.Chart, err = formFile(r, "chart_image"); err != nil {
		return req, err
	}
	if req.Board, err = formFile(r, "board_image"); err != nil {
		return req, err
	}
	return req, nil
}
