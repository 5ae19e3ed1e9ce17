package cmd

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

type chunkFlags struct {
	maxChars     int
	overlapChars int
}

func (f *chunkFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.maxChars, "max-chars", 0, "maximum characters per chunk (server default when omitted)")
	cmd.Flags().IntVar(&f.overlapChars, "overlap-chars", 0, "characters shared by neighbouring chunks (server default when omitted, 0 disables overlap)")
}

// given 只返回命令行上显式设置过的分块参数，键为 API 字段名。
func (f *chunkFlags) given(cmd *cobra.Command) map[string]int {
	out := map[string]int{}
	if cmd.Flags().Changed("max-chars") {
		out["max_chars"] = f.maxChars
	}
	if cmd.Flags().Changed("overlap-chars") {
		out["overlap_chars"] = f.overlapChars
	}
	return out
}

func newIngestCmd(opts *options) *cobra.Command {
	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Add a video transcript or a PDF to the archive",
	}

	var videoFlags chunkFlags
	videoCmd := &cobra.Command{
		Use:   "video [video-id-or-url]",
		Short: "Archive the transcript of a YouTube video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newAPIClient(opts)
			if err != nil {
				return err
			}
			body := map[string]any{"video_id": args[0]}
			for k, v := range videoFlags.given(cmd) {
				body[k] = v
			}
			res, err := c.postJSON(cmd.Context(), "/ingestion/video", body)
			if err != nil {
				return err
			}
			return printIngest(opts.out, res)
		},
	}
	videoFlags.register(videoCmd)

	var pdfFlags chunkFlags
	pdfCmd := &cobra.Command{
		Use:   "pdf [file-path]",
		Short: "Archive the text of a PDF file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newAPIClient(opts)
			if err != nil {
				return err
			}
			fields := map[string]string{}
			for k, v := range pdfFlags.given(cmd) {
				fields[k] = strconv.Itoa(v)
			}
			body, contentType, err := multipartFile(args[0], fields)
			if err != nil {
				return err
			}
			res, err := c.do(cmd.Context(), http.MethodPost, "/ingestion/pdf", nil, body, contentType)
			if err != nil {
				return err
			}
			return printIngest(opts.out, res)
		},
	}
	pdfFlags.register(pdfCmd)

	ingestCmd.AddCommand(videoCmd, pdfCmd)
	return ingestCmd
}

// multipartFile 构造上传请求体，分块参数作为普通表单字段发送。
func multipartFile(path string, fields map[string]string) (io.Reader, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

func printIngest(w io.Writer, res gjson.Result) error {
	_, err := fmt.Fprintf(w, "%s: %d chunks archived\n", res.Get("status").String(), res.Get("total_count").Int())
	return err
}
