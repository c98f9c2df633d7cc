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
	"fmt"
	"github.com/packagewjx/anomalydetector/internal/core"
	"github.com/packagewjx/anomalydetector/internal/coreml"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"strconv"
)

var modelPath string

// predictCmd represents the predict command
var predictCmd = &cobra.Command{
	Use:   "predict <value>...",
	Short: "使用已导出的模型判断请求速率是否异常，1为异常",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		values := make([]float64, len(args))
		for i, arg := range args {
			v, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return errors.Wrapf(err, "解析参数%s出错", arg)
			}
			values[i] = v
		}

		path := modelPath
		if path == "" {
			path = core.RootConfig.Export.OutputPath
		}
		m, err := coreml.Load(path)
		if err != nil {
			return err
		}
		labels, err := m.Predict(values)
		if err != nil {
			return errors.Wrap(err, "模型计算出错")
		}
		for i, v := range values {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", strconv.FormatFloat(v, 'g', -1, 64), labels[i])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(predictCmd)

	predictCmd.Flags().StringVarP(&modelPath, "model", "m", "", "模型文件路径，默认为导出路径")
}
