// Copyright 2026 KPATH Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package embedding

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/kpath-project/kpath-search/pkg/config"
)

// LexicalProvider is a TF-IDF + truncated-SVD fallback that requires no ML
// stack (§4.2). It is not meant for production use; its purpose is to keep
// the system exercisable in environments without a neural backend.
//
// The vocabulary and IDF table are fit from the documents passed to the
// most recent Fit call (typically once per BuildAll), replacing any earlier
// fit; queries reuse the fitted vocabulary. A term unseen at fit time contributes nothing to a
// later query's vector, which is an accepted limitation of this backend.
type LexicalProvider struct {
	cfg config.EmbeddingConfig

	mu    sync.RWMutex
	vocab map[string]int // term -> column index
	idf   []float64      // per-term inverse document frequency
	proj  [][]float64    // dim x len(vocab) projection (truncated SVD components)
}

// NewLexicalProvider constructs an unfit LexicalProvider. Embed returns an
// error until Fit has been called.
func NewLexicalProvider(cfg config.EmbeddingConfig) *LexicalProvider {
	return &LexicalProvider{cfg: cfg}
}

func (p *LexicalProvider) Dim() int { return p.cfg.Dim }

func (p *LexicalProvider) Identifier() string { return p.cfg.Identifier() }

// Fit rebuilds the vocabulary, IDF table, and SVD projection from the given
// corpus. It must be called before a rebuild's Embed calls to be meaningful.
func (p *LexicalProvider) Fit(documents []string) error {
	tokenizedDocs := make([][]string, len(documents))
	df := make(map[string]int)
	vocabOrder := make([]string, 0)
	seen := make(map[string]bool)

	for i, doc := range documents {
		tokens := tokenize(doc)
		tokenizedDocs[i] = tokens
		unique := make(map[string]bool, len(tokens))
		for _, tok := range tokens {
			unique[tok] = true
		}
		for tok := range unique {
			df[tok]++
			if !seen[tok] {
				seen[tok] = true
				vocabOrder = append(vocabOrder, tok)
			}
		}
	}
	sort.Strings(vocabOrder)

	vocab := make(map[string]int, len(vocabOrder))
	idf := make([]float64, len(vocabOrder))
	n := float64(len(documents))
	for i, tok := range vocabOrder {
		vocab[tok] = i
		idf[i] = math.Log((n+1)/(float64(df[tok])+1)) + 1
	}

	tfidf := make([][]float64, len(tokenizedDocs))
	for i, tokens := range tokenizedDocs {
		tfidf[i] = tfidfVector(tokens, vocab, idf)
	}

	proj := truncatedSVDProjection(tfidf, len(vocabOrder), p.cfg.Dim)

	p.mu.Lock()
	p.vocab = vocab
	p.idf = idf
	p.proj = proj
	p.mu.Unlock()
	return nil
}

func (p *LexicalProvider) Embed(_ context.Context, texts []string) ([]Vector, error) {
	p.mu.RLock()
	vocab, idf, proj := p.vocab, p.idf, p.proj
	p.mu.RUnlock()

	if vocab == nil {
		return nil, fmt.Errorf("lexical provider not fit: call Fit before Embed")
	}

	vectors := make([]Vector, len(texts))
	for i, text := range texts {
		tfidf := tfidfVector(tokenize(text), vocab, idf)
		vectors[i] = normalizeL2(projectVector(tfidf, proj, p.cfg.Dim))
	}
	return vectors, nil
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	return fields
}

func tfidfVector(tokens []string, vocab map[string]int, idf []float64) []float64 {
	vec := make([]float64, len(vocab))
	if len(tokens) == 0 {
		return vec
	}
	tf := make(map[int]int, len(tokens))
	for _, tok := range tokens {
		if col, ok := vocab[tok]; ok {
			tf[col]++
		}
	}
	for col, count := range tf {
		vec[col] = (float64(count) / float64(len(tokens))) * idf[col]
	}
	return vec
}

// projectVector applies the dim x vocab projection matrix to a tfidf row.
func projectVector(tfidf []float64, proj [][]float64, dim int) []float32 {
	out := make([]float32, dim)
	if len(proj) == 0 {
		return out
	}
	for d := 0; d < dim && d < len(proj); d++ {
		var sum float64
		row := proj[d]
		for col, weight := range row {
			if col < len(tfidf) {
				sum += weight * tfidf[col]
			}
		}
		out[d] = float32(sum)
	}
	return out
}

// truncatedSVDProjection computes the top-`dim` right singular vectors of
// the documents x terms matrix via power iteration with deflation. This is
// a small, dependency-free substitute for a real SVD routine, adequate for
// the lexical fallback's reference corpora (low thousands of documents).
func truncatedSVDProjection(docs [][]float64, vocabSize, dim int) [][]float64 {
	if vocabSize == 0 || dim == 0 || len(docs) == 0 {
		return nil
	}

	// Work on the term-term covariance-like matrix A = X^T X (vocab x vocab),
	// whose eigenvectors are the right singular vectors of X (documents x terms).
	gram := make([][]float64, vocabSize)
	for i := range gram {
		gram[i] = make([]float64, vocabSize)
	}
	for _, doc := range docs {
		for i, vi := range doc {
			if vi == 0 {
				continue
			}
			for j, vj := range doc {
				if vj == 0 {
					continue
				}
				gram[i][j] += vi * vj
			}
		}
	}

	components := make([][]float64, 0, dim)
	for k := 0; k < dim; k++ {
		vec := powerIteration(gram, components, 64)
		if vec == nil {
			break
		}
		components = append(components, vec)
	}
	return components
}

// powerIteration finds the dominant eigenvector of sym orthogonal to every
// vector already in deflated, using the standard deflation trick.
func powerIteration(sym [][]float64, deflated [][]float64, iterations int) []float64 {
	n := len(sym)
	if n == 0 {
		return nil
	}
	v := make([]float64, n)
	for i := range v {
		v[i] = 1.0 / float64(n+1) * float64(i%7+1)
	}

	for iter := 0; iter < iterations; iter++ {
		next := matVec(sym, v)
		for _, d := range deflated {
			proj := dot(next, d)
			for i := range next {
				next[i] -= proj * d[i]
			}
		}
		norm := l2Norm(next)
		if norm < 1e-12 {
			return nil
		}
		for i := range next {
			next[i] /= norm
		}
		v = next
	}
	return v
}

func matVec(m [][]float64, v []float64) []float64 {
	out := make([]float64, len(m))
	for i, row := range m {
		var sum float64
		for j, x := range row {
			sum += x * v[j]
		}
		out[i] = sum
	}
	return out
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func l2Norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}
