package model

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/YuminosukeSato/piven/pkg/errors"
)

// SaveModel gob-encodes model into filename. Only exported fields are
// written, so estimators persisted this way keep their state in exported
// fields.
//
//	scaler := preprocessing.NewStandardScalerDefault()
//	// ... fit ...
//	err := model.SaveModel(scaler, filepath.Join(dir, "target_scaler.gob"))
func SaveModel(model interface{}, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", filename)
	}
	defer file.Close()

	return SaveModelToWriter(model, file)
}

// LoadModel decodes a gob file written by SaveModel into model, which must
// be a pointer.
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", filename)
	}
	defer file.Close()

	return LoadModelFromReader(model, file)
}

// SaveModelToWriter gob-encodes model into w.
func SaveModelToWriter(model interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(model); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader decodes a gob-encoded model from r.
func LoadModelFromReader(model interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
