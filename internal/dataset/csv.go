package dataset

import (
	"bufio"
	"fmt"
	"github.com/pkg/errors"
	"io"
	"strconv"
	"strings"
)

func WriteAsCsv(frame *Frame, writer io.Writer) error {
	bufWriter := bufio.NewWriter(writer)
	_, _ = bufWriter.WriteString(frame.Column + "\n")
	for _, v := range frame.Values {
		_, _ = bufWriter.WriteString(strconv.FormatFloat(v, 'g', -1, 64) + "\n")
	}
	return errors.Wrap(bufWriter.Flush(), "写入CSV出错")
}

// LoadCsv 读取WriteAsCsv的输出，第一行为列名
func LoadCsv(r io.Reader) (*Frame, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, errors.Wrap(err, "读取CSV出错")
		}
		return nil, fmt.Errorf("CSV缺少表头")
	}
	frame := &Frame{Column: strings.TrimSpace(scanner.Text())}
	line := 1
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "第%d行格式错误", line)
		}
		frame.Values = append(frame.Values, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "读取CSV出错")
	}
	return frame, nil
}
