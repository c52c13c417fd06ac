// Package nlp scores CVs through the NLP matching service over gRPC.
//
// Messages are google.protobuf.Struct on both sides, so no generated stubs are
// needed. Request fields: resume_text, vacancy_title, vacancy_text. Response
// fields: score (fraction 0..1), analysis, strengths, gaps.
package nlp

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/moverq1337/hireboard/internal/apperrors"
	"github.com/moverq1337/hireboard/internal/scoring"
)

const (
	ServiceName = "nlp.NLPService"
	MatchMethod = "/" + ServiceName + "/MatchResumeVacancy"
)

type Client struct {
	conn grpc.ClientConnInterface
}

var _ scoring.Scorer = (*Client)(nil)

// Dial opens a plaintext connection to the NLP service. The connection is lazy;
// errors surface on the first call.
func Dial(addr string, opts ...grpc.DialOption) (*Client, *grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, nil, apperrors.Wrapf(err, "dial nlp service %s", addr)
	}
	return New(conn), conn, nil
}

func New(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) Score(ctx context.Context, req scoring.Request) (scoring.Result, error) {
	in, err := structpb.NewStruct(map[string]any{
		"resume_text":   req.CVText,
		"vacancy_title": req.JobTitle,
		"vacancy_text":  strings.TrimSpace(req.JobRequirements + " " + req.JobDescription),
	})
	if err != nil {
		return scoring.Result{}, apperrors.Wrap(err, "build match request")
	}

	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, MatchMethod, in, out); err != nil {
		return scoring.Result{}, apperrors.Wrap(err, "match resume vacancy")
	}

	fields := out.GetFields()
	score, ok := fields["score"]
	if !ok {
		return scoring.Result{}, apperrors.New("nlp response has no score")
	}

	return scoring.Result{
		Score:     scoring.ClampScore(score.GetNumberValue() * 100),
		Analysis:  fields["analysis"].GetStringValue(),
		Strengths: stringList(fields["strengths"]),
		Gaps:      stringList(fields["gaps"]),
	}, nil
}

func stringList(v *structpb.Value) []string {
	var out []string
	for _, item := range v.GetListValue().GetValues() {
		if s := strings.TrimSpace(item.GetStringValue()); s != "" {
			out = append(out, s)
		}
	}
	return out
}
