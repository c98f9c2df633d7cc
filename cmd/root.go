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
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"io"
	"os"
)

var (
	configPath string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "anomalydetector",
	Short: "训练请求速率异常检测模型并导出为Core ML格式",
	Long: `使用合成的请求速率数据训练隔离森林模型，并将其转换为可在移动端运行的Core ML模型。
不带子命令运行时等同于train子命令：
1. 以固定随机种子生成1000条正常数据与20条异常数据。
2. 以contamination=0.02训练隔离森林。
3. 导出为AnomalyDetector.mlmodel，输入为request_rate，输出为isAnomalous。
`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
	RunE:              runTrain,
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "输出调试日志")

	rootCmd.PersistentFlags().Int64P("seed", "s", core.RootConfig.Dataset.Seed, "随机种子")
	rootCmd.PersistentFlags().Float64("contamination", core.RootConfig.Forest.Contamination,
		"训练数据中异常数据的比例")
	rootCmd.PersistentFlags().StringP("output", "o", core.RootConfig.Export.OutputPath, "模型输出路径")
	bindFlags()
}

func bindFlags() {
	_ = viper.BindPFlag("dataset.seed", rootCmd.PersistentFlags().Lookup("seed"))
	_ = viper.BindPFlag("forest.contamination", rootCmd.PersistentFlags().Lookup("contamination"))
	_ = viper.BindPFlag("export.outputpath", rootCmd.PersistentFlags().Lookup("output"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if code := exitCode(rootCmd.Execute(), os.Stderr); code != 0 {
		os.Exit(code)
	}
}

// 出错时把错误写入w并返回1
func exitCode(err error, w io.Writer) int {
	if err == nil {
		return 0
	}
	_, _ = fmt.Fprintln(w, err)
	return 1
}

func initLogging() {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	if verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.WarnLevel)
	}
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/anomalydetector")
	}

	err := viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configPath != "" {
			return errors.Wrap(err, "读取配置出错")
		}
		log.Debugln("未找到配置文件，使用默认配置")
	}
	err = viper.UnmarshalExact(core.RootConfig)
	if err != nil {
		return errors.Wrap(err, "解析配置出错")
	}
	log.Debugln("读取到配置", core.RootConfig)

	return core.RootConfig.Check()
}
