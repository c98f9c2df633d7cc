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
	"github.com/packagewjx/anomalydetector/internal/core"
	"github.com/packagewjx/anomalydetector/internal/dataset"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"os"
)

var sampleOut string

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "生成训练数据并输出为CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		config := core.RootConfig.Dataset
		frame := dataset.Generate(config, dataset.NewSource(config.Seed))

		if sampleOut == "" || sampleOut == "-" {
			return dataset.WriteAsCsv(frame, cmd.OutOrStdout())
		}
		fout, err := os.Create(sampleOut)
		if err != nil {
			return errors.Wrap(err, "创建输出文件出错")
		}
		defer func() {
			_ = fout.Close()
		}()
		return dataset.WriteAsCsv(frame, fout)
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&sampleOut, "file", "f", "", "CSV输出路径，为空时输出到标准输出")
}
