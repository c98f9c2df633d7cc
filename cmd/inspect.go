/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"github.com/packagewjx/anomalydetector/internal/coreml"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"io"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

var outputFormat string

type modelSummary struct {
	SpecificationVersion int32               `yaml:"specificationVersion" json:"specificationVersion"`
	ShortDescription     string              `yaml:"shortDescription,omitempty" json:"shortDescription,omitempty"`
	Author               string              `yaml:"author,omitempty" json:"author,omitempty"`
	Inputs               []coreml.TensorType `yaml:"inputs" json:"inputs"`
	Outputs              []coreml.TensorType `yaml:"outputs" json:"outputs"`
	PredictedFeatureName string              `yaml:"predictedFeatureName" json:"predictedFeatureName"`
	UserDefined          map[string]string   `yaml:"userDefined,omitempty" json:"userDefined,omitempty"`
	Trees                int                 `yaml:"trees" json:"trees"`
	Nodes                int                 `yaml:"nodes" json:"nodes"`
}

func summarize(m *coreml.Model) *modelSummary {
	inputs, outputs := m.Interface()
	s := &modelSummary{
		SpecificationVersion: m.SpecificationVersion,
		ShortDescription:     m.Description.Metadata.ShortDescription,
		Author:               m.Description.Metadata.Author,
		Inputs:               inputs,
		Outputs:              outputs,
		PredictedFeatureName: m.Description.PredictedFeatureName,
		UserDefined:          m.Description.Metadata.UserDefined,
	}
	if m.Classifier != nil {
		s.Nodes = len(m.Classifier.Nodes)
		trees := map[uint64]struct{}{}
		for _, n := range m.Classifier.Nodes {
			trees[n.TreeID] = struct{}{}
		}
		s.Trees = len(trees)
	}
	return s
}

func encode(w io.Writer, v interface{}) error {
	switch outputFormat {
	case formatYAML, "yml":
		return yaml.NewEncoder(w).Encode(v)
	case formatJSON:
		e := json.NewEncoder(w)
		e.SetIndent("", "  ")
		return e.Encode(v)
	default:
		return fmt.Errorf("不支持的输出格式%s", outputFormat)
	}
}

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <model file>",
	Short: "查看.mlmodel文件声明的输入输出",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := coreml.Load(args[0])
		if err != nil {
			return err
		}
		return errors.Wrap(encode(cmd.OutOrStdout(), summarize(m)), "输出模型信息出错")
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringVarP(&outputFormat, "format", "f", formatYAML, "输出格式 [yaml, json]")
}
