package trainer

import (
	"github.com/packagewjx/anomalydetector/internal/algorithm"
	"github.com/packagewjx/anomalydetector/internal/core"
	"github.com/packagewjx/anomalydetector/internal/coreml"
	"github.com/packagewjx/anomalydetector/internal/dataset"
	"github.com/packagewjx/anomalydetector/internal/detector"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"math/rand/v2"
	"strconv"
)

type Result struct {
	Frame   *dataset.Frame
	Forest  *algorithm.IsolationForest
	Model   *coreml.Model
	Flagged int
}

// Train 生成数据、训练并转换模型，不写文件
func Train(config *core.Config) (*Result, error) {
	src := dataset.NewSource(config.Dataset.Seed)
	frame := dataset.Generate(config.Dataset, src)
	log.Debugf("生成训练数据%d条，列名%s", frame.Len(), frame.Column)

	forest := algorithm.NewIsolationForest(config.Forest, rand.New(src))
	if err := forest.Fit(frame.Values); err != nil {
		return nil, errors.Wrap(err, "训练模型出错")
	}
	log.Debugf("训练完成，contamination=%g offset=%.6f", forest.Contamination(), forest.Offset())

	labels, err := detector.New(forest).Predict(frame.Values)
	if err != nil {
		return nil, errors.Wrap(err, "计算训练数据标签出错")
	}
	flagged := detector.CountAnomalies(labels)
	log.Infof("训练数据中%d/%d条被判定为异常", flagged, frame.Len())

	model, err := coreml.Convert(forest,
		[]coreml.TensorType{{Name: config.Export.InputName, Shape: []int64{1}, DType: coreml.Float32}},
		[]coreml.TensorType{{Name: config.Export.OutputName, Shape: []int64{1}, DType: coreml.Int64}},
		coreml.WithAuthor(config.Export.Author),
		coreml.WithShortDescription(config.Export.ShortDescription),
		coreml.WithUserDefined("seed", strconv.FormatInt(config.Dataset.Seed, 10)),
	)
	if err != nil {
		return nil, errors.Wrap(err, "转换模型出错")
	}

	return &Result{
		Frame:   frame,
		Forest:  forest,
		Model:   model,
		Flagged: flagged,
	}, nil
}

// Export 训练并把模型写入config.Export.OutputPath
func Export(config *core.Config) (*Result, error) {
	result, err := Train(config)
	if err != nil {
		return nil, err
	}
	if err := coreml.Save(result.Model, config.Export.OutputPath); err != nil {
		return nil, err
	}
	log.Debugf("模型已写入%s", config.Export.OutputPath)
	return result, nil
}
