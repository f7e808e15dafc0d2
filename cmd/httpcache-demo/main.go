// MIT License
//
// Copyright (c) 2023 kache.io
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Command httpcache-demo wires the caching interceptor into a standalone
// HTTP client fronting an in-process origin, to exercise the full stack end
// to end: config loading, logging, metrics, store backend selection, and
// the RFC 7234 decision flow.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/kacheio/httpcache/pkg/config"
	"github.com/kacheio/httpcache/pkg/interceptor"
	"github.com/kacheio/httpcache/pkg/logger"
	"github.com/kacheio/httpcache/pkg/metrics"
	"github.com/kacheio/httpcache/pkg/policy"
	"github.com/kacheio/httpcache/pkg/store"
	"github.com/kacheio/httpcache/pkg/store/disk"
	"github.com/kacheio/httpcache/pkg/store/memcache"
	"github.com/kacheio/httpcache/pkg/store/redis"
)

const (
	configFileOption       = "config.file"
	configAutoReloadOption = "config.auto-reload"
	listenAddrOption       = "listen"
	metricsAddrOption      = "metrics.listen"
)

func main() {
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	var configFile string
	flag.StringVar(&configFile, configFileOption, "httpcache.yml", "path to the YAML config file")

	var configAutoReload bool
	flag.BoolVar(&configAutoReload, configAutoReloadOption, false, "poll the config file for changes")

	var listenAddr string
	flag.StringVar(&listenAddr, listenAddrOption, ":8080", "address the demo client-facing server listens on")

	var metricsAddr string
	flag.StringVar(&metricsAddr, metricsAddrOption, ":9090", "address the Prometheus metrics server listens on")

	flag.Parse()

	ldr, err := config.NewLoader(configFile, configAutoReload, 10*time.Second)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error loading config from %s: %v\n", configFile, err)
		os.Exit(1)
	}
	cfg := ldr.Config()

	logger.Init(cfg.Log)
	log.Info().Str("config", configFile).Msg("httpcache-demo starting")

	if err := ldr.Watch(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("starting config watcher")
	}
	go func() {
		for range ldr.Events {
			log.Info().Str("config", configFile).Msg("config file changed; restart to apply it")
		}
	}()

	backend, err := buildStore(cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("constructing store backend")
	}

	p := policy.New(cfg.Policy.IsSharedCache, cfg.Policy.MaxResponseBodySize)
	if cfg.Policy.DefaultFreshnessSeconds > 0 {
		p.SetDefaultFreshness(time.Duration(cfg.Policy.DefaultFreshnessSeconds) * time.Second)
	}

	ic := interceptor.New(backend, p, nil, nil)

	m := metrics.New(prometheus.DefaultRegisterer)
	transport := interceptor.NewTransport(ic, http.DefaultTransport)
	transport.OnOutcome = m.ObserveOutcome

	client := &http.Client{Transport: transport}

	origin := mux.NewRouter()
	registerOriginRoutes(origin)
	originServer := &http.Server{Addr: ":8081", Handler: origin}
	go func() {
		log.Info().Str("addr", originServer.Addr).Msg("demo origin listening")
		if err := originServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("demo origin server failed")
		}
	}()

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Info().Str("addr", metricsAddr).Msg("metrics server listening")
		if err := http.ListenAndServe(metricsAddr, metricsRouter); err != nil {
			log.Fatal().Err(err).Msg("metrics server failed")
		}
	}()

	frontRouter := mux.NewRouter()
	frontRouter.PathPrefix("/").HandlerFunc(proxyHandler(client))

	log.Info().Str("addr", listenAddr).Msg("demo client-facing server listening")
	if err := http.ListenAndServe(listenAddr, frontRouter); err != nil {
		log.Fatal().Err(err).Msg("client-facing server failed")
	}
}

// buildStore constructs the configured store.Store backend.
func buildStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case "", config.BackendMemory:
		return store.NewMemory(store.MemoryConfig{MaxEntries: cfg.MaxEntries})
	case config.BackendRedis:
		return redis.New(*cfg.Redis)
	case config.BackendDisk:
		return disk.New(*cfg.Disk), nil
	case config.BackendMemcache:
		return memcache.New(*cfg.Memcache), nil
	default:
		return nil, fmt.Errorf("httpcache-demo: unknown store backend %q", cfg.Backend)
	}
}

// proxyHandler forwards incoming requests to the in-process origin through
// client (whose Transport is the caching interceptor), copying the response
// back verbatim.
func proxyHandler(client *http.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		outReq, err := http.NewRequestWithContext(r.Context(), r.Method, "http://localhost:8081"+r.URL.RequestURI(), r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		outReq.Header = r.Header.Clone()

		resp, err := client.Do(outReq)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()

		for k, vv := range resp.Header {
			for _, v := range vv {
				w.Header().Add(k, v)
			}
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(w, resp.Body)
	}
}

// registerOriginRoutes defines the demo origin's handful of sample
// resources, each exercising a different Cache-Control profile.
func registerOriginRoutes(r *mux.Router) {
	r.HandleFunc("/resource", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Cache-Control", "max-age=3600")
		w.Header().Set("Etag", `"v1"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("testbody"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/no-store", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("never cached"))
	}).Methods(http.MethodGet)
}
