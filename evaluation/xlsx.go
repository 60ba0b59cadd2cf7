package evaluation

import (
	"io"
	"math"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/YuminosukeSato/bikedemand/pkg/errors"
)

const (
	summarySheet      = "summary"
	weightsSheet = "feature_weights"
)

// WriteXLSX は評価結果をワークブックとして w へ書き出す
//
// シートは summary（分割ごとの指標）、分割ごとの confusion_<name> と
// classes_<name>、coefs が空でなければ feature_weights です。measure は
// feature_weights の値列の見出し（"coefficient" や "split_importance"）。
func WriteXLSX(w io.Writer, reports []*Report, coefs []Coefficient, measure string) error {
	if len(reports) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "write evaluation workbook")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return errors.Wrap(err, "rename sheet")
	}
	header := []interface{}{"split", "rows", "qwk", "linear_kappa", "accuracy", "mae", "rmse", "cut_low", "cut_high"}
	if err := setRow(f, summarySheet, 1, header); err != nil {
		return err
	}
	for i, r := range reports {
		row := []interface{}{r.Name, r.N, cell(r.QWK), cell(r.LinearKappa), r.Accuracy, r.MAE, r.RMSE}
		for _, c := range r.Cuts {
			row = append(row, c)
		}
		if err := setRow(f, summarySheet, i+2, row); err != nil {
			return err
		}
	}

	for _, r := range reports {
		if err := writeConfusion(f, r); err != nil {
			return err
		}
		if err := writeClasses(f, r); err != nil {
			return err
		}
	}

	if len(coefs) > 0 {
		if _, err := f.NewSheet(weightsSheet); err != nil {
			return errors.Wrap(err, "create feature weights sheet")
		}
		if err := setRow(f, weightsSheet, 1, []interface{}{"feature", measure}); err != nil {
			return err
		}
		for i, c := range coefs {
			if err := setRow(f, weightsSheet, i+2, []interface{}{c.Name, c.Value}); err != nil {
				return err
			}
		}
	}

	return errors.Wrap(f.Write(w), "write evaluation workbook")
}

// WriteXLSXFile は WriteXLSX の結果を path に保存する
func WriteXLSXFile(path string, reports []*Report, coefs []Coefficient, measure string) error {
	return WriteFile(path, func(w io.Writer) error { return WriteXLSX(w, reports, coefs, measure) })
}

// WriteFile は write の出力を path に保存する
func WriteFile(path string, write func(io.Writer) error) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = errors.Wrapf(cerr, "close %s", path)
		}
	}()
	return write(out)
}

func writeConfusion(f *excelize.File, r *Report) error {
	sheet := "confusion_" + r.Name
	if _, err := f.NewSheet(sheet); err != nil {
		return errors.Wrapf(err, "create sheet %s", sheet)
	}
	header := []interface{}{"true\\pred"}
	for _, n := range ClassNames {
		header = append(header, n)
	}
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	for i, name := range ClassNames {
		row := []interface{}{name}
		for j := range ClassNames {
			row = append(row, int(r.Confusion.At(i, j)))
		}
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeClasses(f *excelize.File, r *Report) error {
	sheet := "classes_" + r.Name
	if _, err := f.NewSheet(sheet); err != nil {
		return errors.Wrapf(err, "create sheet %s", sheet)
	}
	if err := setRow(f, sheet, 1, []interface{}{"class", "precision", "recall", "f1", "support"}); err != nil {
		return err
	}
	for i, s := range r.Classification.Classes {
		row := []interface{}{ClassNames[i], s.Precision, s.Recall, s.F1, s.Support}
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	macro := []interface{}{"macro", r.Classification.MacroPrecision, r.Classification.MacroRecall, r.Classification.MacroF1, r.N}
	return setRow(f, sheet, len(r.Classification.Classes)+2, macro)
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	axis, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return errors.Wrap(err, "cell name")
	}
	return errors.Wrapf(f.SetSheetRow(sheet, axis, &values), "write %s row %d", sheet, row)
}

// cell は NaN を空欄として書き出す
func cell(v float64) interface{} {
	if math.IsNaN(v) {
		return ""
	}
	return v
}
