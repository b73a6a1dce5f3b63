package model

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/YuminosukeSato/co2stack/pkg/errors"
)

// SaveModel はモデルをgob形式でファイルに保存する。
// 親ディレクトリは作成しないため、存在しない場合はエラーになる。
//
// インターフェース型のフィールドを持つモデルは、具象型を事前に
// gob.Register しておく必要がある（各パッケージの init で登録済み）。
//
// 使用例:
//
//	err := model.SaveModel(pipe, "models/best_stacking_model.gob")
func SaveModel(model interface{}, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to create model file %s", filename)
	}
	defer file.Close()

	if err := SaveModelToWriter(model, file); err != nil {
		return err
	}
	return errors.Wrap(file.Close(), "failed to close model file")
}

// LoadModel はファイルからモデルを読み込む。model はポインタであること。
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewFileNotFoundError("Model", filename)
		}
		return errors.Wrapf(err, "failed to open model file %s", filename)
	}
	defer file.Close()

	return LoadModelFromReader(model, file)
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(model interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(model); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(model interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
